package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

func parseNodes(t *testing.T, markup string) []*html.Node {
	t.Helper()
	document, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("failed to parse markup: %v", err)
	}
	return []*html.Node{document}
}

func TestCollectLinesBreaksAtBlocksAndBreaks(t *testing.T) {
	markup := `<div>Intro <p>First<br>Second</p>Tail</div><h1>Heading</h1><ul><li>Item</li></ul>`

	lines := collectLines(parseNodes(t, markup))

	var texts []string
	var candidates []bool
	for _, line := range lines {
		texts = append(texts, line.text)
		candidates = append(candidates, line.candidate)
	}
	assert.Equal(t, []string{"Intro", "First", "Second", "Tail", "Heading", "Item"}, texts)
	assert.Equal(t, []bool{true, true, true, true, false, true}, candidates)
}

func TestCollectLinesSkipsNoise(t *testing.T) {
	markup := `<html><head><title>t</title><style>p{}</style></head><body>
		<nav>Home</nav><div class="breadcrumb x">Code &gt; Title 1</div>
		<p>Kept</p><script>var x;</script><footer>Copyright</footer></body></html>`

	assert.Equal(t, "Kept", nodeText(parseNodes(t, markup)))
}

func TestCollectLinesCatchline(t *testing.T) {
	assert.Equal(t, "§ 4. Title.\nBody follows.", nodeText(parseNodes(t, `<p><strong>§ 4. Title.</strong> Body follows.</p>`)))
	assert.Equal(t, "Note: inline bold stays on one line.", nodeText(parseNodes(t, `<p><b>Note:</b> inline bold stays on one line.</p>`)))
	assert.Equal(t, "Some bold. text", nodeText(parseNodes(t, `<p>Some <b>bold.</b> text</p>`)))
}
