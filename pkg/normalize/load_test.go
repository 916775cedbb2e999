package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_LoadCodeRoundTrip(t *testing.T) {
	writer := newTestWriter(t)
	stub := statute.NewSection("1-1-2", "Repeal.", "")
	stub.SourceURL = "https://example.gov/code/1-1-2"
	code := sampleCode(
		statute.NewSection("1-1-1", "Meaning of certain words.", "Words importing the singular include the plural."),
		stub,
	)
	_, err := writer.Write(code)
	require.NoError(t, err)

	loaded, err := writer.LoadCode("alabama")
	require.NoError(t, err)

	assert.Equal(t, "AL", loaded.StateAbbr)
	assert.Equal(t, "official_html", loaded.Source)
	assert.True(t, fixedTime.Equal(loaded.LastUpdated))
	assert.Equal(t, statute.Counts{Titles: 1, Chapters: 1, Sections: 2}, loaded.Counts())

	stubs := loaded.Stubs()
	require.Len(t, stubs, 1)
	assert.Equal(t, "https://example.gov/code/1-1-2", stubs[0].SourceURL)
}

func TestWriter_LoadCodeSkipsMissingContent(t *testing.T) {
	writer := newTestWriter(t)
	_, err := writer.Write(sampleCode(statute.NewSection("1-1-1", "Words.", "Text.")))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(writer.DataDir, "alabama", "content", "title-1", "chapter-1.json")))

	loaded, err := writer.LoadCode("alabama")
	require.NoError(t, err)
	assert.Empty(t, loaded.Titles)
}

func TestWriter_LoadCodeUnpublished(t *testing.T) {
	writer := newTestWriter(t)
	_, err := writer.LoadCode("nowhere")
	assert.Error(t, err)
}
