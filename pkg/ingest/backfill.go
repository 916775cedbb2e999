package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coolbeans/statutes/pkg/extract"
	"github.com/coolbeans/statutes/pkg/statute"
)

// TextFetcher fetches a page as text.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// BackfillResult summarizes one gap-filling pass.
type BackfillResult struct {
	// Stubs is the number of sections without text before the pass.
	Stubs int `json:"stubs"`

	// Pages is the number of distinct source pages requested.
	Pages int `json:"pages"`

	// Filled is the number of stubs that received text.
	Filled int `json:"filled"`

	// FailedPages is the number of pages that could not be fetched.
	FailedPages int `json:"failed_pages"`
}

// Backfill fetches the source page of every stub section, extracts its
// sections, and merges recovered text into the stub. A page is matched to a
// stub by section identifier. When a page is referenced by a single stub and
// yields exactly one section, that section is taken as the stub's text.
// Stubs without a source URL are left alone, as are pages that fail to fetch.
func Backfill(ctx context.Context, code *statute.Code, client TextFetcher, engine *extract.Engine, workers int) (*BackfillResult, error) {
	if engine == nil {
		engine = extract.NewEngine()
	}

	stubs := code.Stubs()
	result := &BackfillResult{Stubs: len(stubs)}
	if len(stubs) == 0 {
		return result, nil
	}

	var pageURLs []string
	stubsPerPage := map[string]int{}
	for _, stub := range stubs {
		if stub.SourceURL == "" {
			continue
		}
		if stubsPerPage[stub.SourceURL] == 0 {
			pageURLs = append(pageURLs, stub.SourceURL)
		}
		stubsPerPage[stub.SourceURL]++
	}
	result.Pages = len(pageURLs)

	var mutex sync.Mutex
	recovered := make(map[string][]statute.Section, len(pageURLs))
	failures, err := FetchAll(ctx, pageURLs, workers, func(ctx context.Context, pageURL string) error {
		html, err := client.FetchText(ctx, pageURL)
		if err != nil {
			return err
		}
		sections, err := engine.ExtractHTML(strings.NewReader(html))
		if err != nil {
			return err
		}
		extract.AttachSourceURL(sections, pageURL)
		mutex.Lock()
		recovered[pageURL] = sections
		mutex.Unlock()
		return nil
	})
	result.FailedPages = len(failures)

	for _, stub := range stubs {
		sections := recovered[stub.SourceURL]
		incoming, found := matchRecovered(stub, sections, stubsPerPage[stub.SourceURL] == 1)
		if !found {
			continue
		}
		if statute.MergeSection(stub, incoming) && !stub.IsStub() {
			result.Filled++
		}
	}

	if err != nil {
		return result, fmt.Errorf("backfill interrupted: %w", err)
	}
	return result, nil
}

func matchRecovered(stub *statute.Section, sections []statute.Section, soleStub bool) (statute.Section, bool) {
	for _, section := range sections {
		if section.ID == stub.ID {
			return section, true
		}
	}
	if soleStub && len(sections) == 1 {
		return sections[0], true
	}
	return statute.Section{}, false
}
