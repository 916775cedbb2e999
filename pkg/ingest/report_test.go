package ingest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	report := NewReport("2f1c7d1e-0000-4000-8000-000000000001", false)
	report.StartedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(90 * time.Second)
	report.Record(JurisdictionReport{
		Key:      "alabama",
		Source:   KindOfficialHTML,
		Status:   StatusSucceeded,
		Stats:    statute.Counts{Titles: 2, Chapters: 5, Sections: 40},
		Duration: 1500 * time.Millisecond,
	})
	report.Record(JurisdictionReport{
		Key:    "district-of-columbia",
		Source: KindXMLArchive,
		Status: StatusFailed,
		Error:  "failed to fetch: failed to download archive: HTTP 503",
	})
	return report
}

func TestReport_RecordTotals(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, statute.Counts{Titles: 2, Chapters: 5, Sections: 40}, report.Totals)
}

func TestReport_FormatTable(t *testing.T) {
	table := FormatReport(sampleReport(), "table")

	assert.True(t, strings.HasPrefix(table, "=== Ingest Report ==="))
	assert.Contains(t, table, "Run ID: 2f1c7d1e-0000-4000-8000-000000000001")
	assert.Contains(t, table, "Elapsed: 1m30s")
	assert.Contains(t, table, "Sections:      40")
	assert.Contains(t, table, "alabama")
	assert.Contains(t, table, "1.5s")
	assert.Contains(t, table, "HTTP 503")
}

func TestReport_FormatJSON(t *testing.T) {
	formatted := sampleReport().Format("JSON")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(formatted), &decoded))
	assert.Equal(t, "2f1c7d1e-0000-4000-8000-000000000001", decoded["run_id"])
	assert.Len(t, decoded["jurisdictions"], 2)
}

func TestTruncateReportString(t *testing.T) {
	testCases := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"district-of-columbia", 10, "distric..."},
		{"§§§§§", 4, "§..."},
		{"abcdef", 2, "ab"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, truncateReportString(testCase.input, testCase.maxLen))
	}
}
