package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveURL = "https://code.example.gov/law-xml-codified.zip"

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buffer.Bytes()
}

func newArchiveCollector(t *testing.T, client Fetcher) *XMLArchive {
	t.Helper()
	ingestor, err := NewXMLArchive(config.Jurisdiction{
		Key:      "district-of-columbia",
		Abbr:     "DC",
		CodeName: "District of Columbia Official Code",
		Source:   KindXMLArchive,
		URL:      archiveURL,
		Options:  map[string]string{"section_url_base": "https://code.example.gov/sections/"},
	}, Env{Client: client, RawDir: t.TempDir(), Logger: quietLogger()}.withDefaults())
	require.NoError(t, err)
	return ingestor.(*XMLArchive)
}

func TestXMLArchive_SectionLayout(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"law-xml-codified-master/us/dc/council/code/titles/1/index.xml": `<container><num>1</num><heading>Government Organization.</heading></container>`,
		"law-xml-codified-master/us/dc/council/code/titles/1/sections/1-101.xml": `<section><num>1-101</num><heading>Territorial area.</heading>` +
			`<text>The District is that portion of the territory ceded by Maryland.</text></section>`,
		"law-xml-codified-master/us/dc/council/code/titles/1/sections/1-102.xml": `<section><num>1-102</num><heading>Reserved.</heading></section>`,
	})
	fetcher := &fakeFetcher{files: map[string][]byte{archiveURL: archive}}
	collector := newArchiveCollector(t, fetcher)

	rawDir, err := collector.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, collector.RawDir(), rawDir)

	code, err := collector.Parse(rawDir)
	require.NoError(t, err)
	assert.Equal(t, "DC", code.StateAbbr)
	require.Len(t, code.Titles, 1)
	assert.Equal(t, "Government Organization.", code.Titles[0].Heading)

	sections := code.Titles[0].Chapters[0].Sections
	require.Len(t, sections, 2)
	assert.Equal(t, "1-101", sections[0].Number)
	assert.Contains(t, sections[0].Text, "ceded by Maryland")
	assert.Equal(t, "https://code.example.gov/sections/1-101.html", sections[0].SourceURL)
	assert.True(t, sections[1].IsStub())

	requests := fetcher.requestCount()
	_, err = collector.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, requests, fetcher.requestCount(), "extracted archive should be reused")
}

func TestXMLArchive_NestedDocuments(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"code/part-1.xml": `<code><title><num>1</num><heading>Sovereignty</heading>
<chapter><num>1</num><heading>Boundaries</heading>
<section><num>1.010</num><heading>Boundaries.</heading>The boundaries of the state are fixed.</section>
</chapter></title></code>`,
		"code/part-2.xml": `<code><title><num>1</num><heading>Sovereignty</heading>
<chapter><num>2</num><heading>Seal</heading>
<section><num>1.200</num><heading>Seal.</heading>The seal of the state is described.</section>
</chapter></title></code>`,
		"code/broken.xml": `<code><title>`,
		"code/readme.txt": `not xml`,
	})
	collector := newArchiveCollector(t, &fakeFetcher{files: map[string][]byte{archiveURL: archive}})

	rawDir, err := collector.Fetch(context.Background())
	require.NoError(t, err)

	code, err := collector.Parse(rawDir)
	require.NoError(t, err)
	require.Len(t, code.Titles, 1)
	require.Len(t, code.Titles[0].Chapters, 2)
	assert.Equal(t, "chapter-1", code.Titles[0].Chapters[0].ID)
	assert.Equal(t, "chapter-2", code.Titles[0].Chapters[1].ID)
}

func TestXMLArchive_DownloadFailure(t *testing.T) {
	collector := newArchiveCollector(t, &fakeFetcher{})
	_, err := collector.Fetch(context.Background())
	assert.Error(t, err)

	_, err = collector.Parse(collector.RawDir())
	assert.ErrorIs(t, err, ErrNoRawMaterial)
}
