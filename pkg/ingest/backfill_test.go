package ingest

import (
	"context"
	"testing"

	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubCode(sections ...statute.Section) *statute.Code {
	code := &statute.Code{State: "alabama"}
	title := statute.NewTitle("1", "General")
	chapter := statute.NewChapter("1", "Definitions")
	chapter.Sections = sections
	title.AddChapter(chapter)
	code.AddTitle(title)
	return code
}

func stubSection(number string, sourceURL string) statute.Section {
	section := statute.NewSection(number, "", "")
	section.SourceURL = sourceURL
	return section
}

func TestBackfill_FillsStubsFromSourcePages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://law.example.gov/1-1-1": `<html><body><p>§ 1-1-1. Definitions.</p><p>Words have their ordinary meaning.</p></body></html>`,
		"https://law.example.gov/chapter-1": `<html><body>
<p>§ 1-1-2. Construction.</p><p>Words shall be read in context.</p>
<p>§ 1-1-3. Severability.</p><p>Provisions are severable.</p></body></html>`,
	}}
	code := stubCode(
		stubSection("1-1-1", "https://law.example.gov/1-1-1"),
		stubSection("1-1-2", "https://law.example.gov/chapter-1"),
		stubSection("1-1-3", "https://law.example.gov/chapter-1"),
		stubSection("1-1-4", "https://law.example.gov/missing"),
		stubSection("1-1-5", ""),
		statute.NewSection("1-1-6", "Already.", "Existing text."),
	)

	result, err := Backfill(context.Background(), code, fetcher, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, &BackfillResult{Stubs: 5, Pages: 3, Filled: 3, FailedPages: 1}, result)
	assert.Equal(t, 3, fetcher.requestCount(), "shared pages are fetched once")

	sections := code.Titles[0].Chapters[0].Sections
	assert.Equal(t, "Words have their ordinary meaning.", sections[0].Text)
	assert.Equal(t, "Definitions.", sections[0].Heading)
	assert.Equal(t, "Words shall be read in context.", sections[1].Text)
	assert.Equal(t, "Provisions are severable.", sections[2].Text)
	assert.Equal(t, "section-1-1-3", sections[2].ID)
	assert.True(t, sections[3].IsStub())
	assert.True(t, sections[4].IsStub())
	assert.Equal(t, "Existing text.", sections[5].Text)
}

func TestBackfill_NoStubs(t *testing.T) {
	fetcher := &fakeFetcher{}
	code := stubCode(statute.NewSection("1-1-1", "Words.", "Text."))

	result, err := Backfill(context.Background(), code, fetcher, nil, 2)
	require.NoError(t, err)
	assert.Zero(t, result.Stubs)
	assert.Zero(t, fetcher.requestCount())
}

func TestBackfill_UnmatchedPageLeavesStub(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://law.example.gov/chapter-1": `<html><body>
<p>§ 9-1. Other.</p><p>Other text.</p><p>§ 9-2. Another.</p><p>More text.</p></body></html>`,
	}}
	code := stubCode(stubSection("1-1-1", "https://law.example.gov/chapter-1"))

	result, err := Backfill(context.Background(), code, fetcher, nil, 1)
	require.NoError(t, err)
	assert.Zero(t, result.Filled)
	assert.True(t, code.Titles[0].Chapters[0].Sections[0].IsStub())
}

func TestBackfill_SharedPageMatchesByIdentifierOnly(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://law.example.gov/chapter-1": `<html><body><p>§ 1-1-2. Construction.</p><p>Words shall be read in context.</p></body></html>`,
	}}
	code := stubCode(
		stubSection("1-1-2", "https://law.example.gov/chapter-1"),
		stubSection("1-1-3", "https://law.example.gov/chapter-1"),
		stubSection("1-1-4", "https://law.example.gov/chapter-1"),
	)

	result, err := Backfill(context.Background(), code, fetcher, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, &BackfillResult{Stubs: 3, Pages: 1, Filled: 1}, result)
	sections := code.Titles[0].Chapters[0].Sections
	assert.Equal(t, "Words shall be read in context.", sections[0].Text)
	assert.True(t, sections[1].IsStub())
	assert.Empty(t, sections[1].Heading)
	assert.True(t, sections[2].IsStub())
	assert.Empty(t, sections[2].Heading)
}

func TestBackfill_SoleStubTakesSingleSectionPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://law.example.gov/view?id=77": `<html><body><p>§ 1-1-1a. Definitions.</p><p>Words have their ordinary meaning.</p></body></html>`,
	}}
	code := stubCode(stubSection("1-1-1", "https://law.example.gov/view?id=77"))

	result, err := Backfill(context.Background(), code, fetcher, nil, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Filled)
	section := code.Titles[0].Chapters[0].Sections[0]
	assert.Equal(t, "Words have their ordinary meaning.", section.Text)
	assert.Equal(t, "section-1-1-1", section.ID)
}
