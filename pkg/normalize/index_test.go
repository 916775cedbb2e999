package normalize

import (
	"path/filepath"
	"testing"

	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateIndex_UpsertsAndSorts(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.json")

	_, err := UpdateIndex(indexPath,
		Manifest{State: "wyoming", StateAbbr: "WY", Stats: statute.Counts{Sections: 5}},
		Manifest{State: "alabama", StateAbbr: "AL", Stats: statute.Counts{Sections: 3}},
	)
	require.NoError(t, err)

	index, err := UpdateIndex(indexPath, Manifest{State: "wyoming", StateAbbr: "WY", Stats: statute.Counts{Sections: 9}})
	require.NoError(t, err)

	require.Len(t, index.States, 2)
	assert.Equal(t, "alabama", index.States[0].State)
	assert.Equal(t, 9, index.States[1].Stats.Sections)

	reloaded, err := LoadIndex(indexPath)
	require.NoError(t, err)
	assert.Equal(t, index.States, reloaded.States)
}

func TestRebuildIndex_FromManifests(t *testing.T) {
	writer := newTestWriter(t)
	for _, state := range []string{"texas", "alaska"} {
		code := sampleCode(statute.NewSection("1", "One.", "Text."))
		code.State = state
		_, err := writer.Write(code)
		require.NoError(t, err)
	}

	indexPath := filepath.Join(filepath.Dir(writer.DataDir), "index.json")
	index, err := RebuildIndex(writer.DataDir, indexPath)
	require.NoError(t, err)

	require.Len(t, index.States, 2)
	assert.Equal(t, "alaska", index.States[0].State)
	assert.Equal(t, "texas", index.States[1].State)
	assert.Equal(t, 1, index.States[0].Stats.Sections)
	assert.Equal(t, fixedTime, index.States[0].LastUpdated)
	assert.FileExists(t, indexPath)
}

func TestLoadIndex_Missing(t *testing.T) {
	index, err := LoadIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)
	assert.Empty(t, index.States)
}
