package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coolbeans/statutes/pkg/statute"
)

// Status is the outcome of one jurisdiction in a batch.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JurisdictionReport is the outcome of one jurisdiction.
type JurisdictionReport struct {
	Key            string          `json:"key"`
	Source         string          `json:"source"`
	Status         Status          `json:"status"`
	Stats          statute.Counts  `json:"stats"`
	Written        int             `json:"written"`
	Unchanged      int             `json:"unchanged"`
	MergedSections int             `json:"merged_sections"`
	Backfill       *BackfillResult `json:"backfill,omitempty"`
	Duration       time.Duration   `json:"duration"`
	Error          string          `json:"error,omitempty"`
}

// Report contains the results of a batch run.
type Report struct {
	RunID      string    `json:"run_id"`
	SkipFetch  bool      `json:"skip_fetch"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Totals    statute.Counts `json:"totals"`

	// Jurisdictions holds one entry per requested jurisdiction, in request
	// order.
	Jurisdictions []JurisdictionReport `json:"jurisdictions"`
}

// NewReport creates an empty report for a run.
func NewReport(runID string, skipFetch bool) *Report {
	return &Report{
		RunID:         runID,
		SkipFetch:     skipFetch,
		Jurisdictions: make([]JurisdictionReport, 0),
	}
}

// Record adds one jurisdiction's outcome.
func (report *Report) Record(result JurisdictionReport) {
	report.Jurisdictions = append(report.Jurisdictions, result)

	switch result.Status {
	case StatusSucceeded:
		report.Succeeded++
		report.Totals.Titles += result.Stats.Titles
		report.Totals.Chapters += result.Stats.Chapters
		report.Totals.Sections += result.Stats.Sections
	case StatusFailed:
		report.Failed++
	}
}

// Format returns the report in the specified format (table or json).
func (report *Report) Format(outputFormat string) string {
	switch strings.ToLower(outputFormat) {
	case "json":
		return report.formatJSON()
	default:
		return report.formatTable()
	}
}

// FormatReport renders report as a table or, for "json", as JSON.
func FormatReport(report *Report, outputFormat string) string {
	return report.Format(outputFormat)
}

func (report *Report) formatTable() string {
	var builder strings.Builder

	if report.SkipFetch {
		builder.WriteString("=== Parse Report ===\n\n")
	} else {
		builder.WriteString("=== Ingest Report ===\n\n")
	}

	builder.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Elapsed: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))
	}
	builder.WriteString("\n")

	builder.WriteString("Summary:\n")
	builder.WriteString(fmt.Sprintf("  Jurisdictions: %d\n", len(report.Jurisdictions)))
	builder.WriteString(fmt.Sprintf("  Succeeded:     %d\n", report.Succeeded))
	builder.WriteString(fmt.Sprintf("  Failed:        %d\n", report.Failed))
	builder.WriteString(fmt.Sprintf("  Titles:        %d\n", report.Totals.Titles))
	builder.WriteString(fmt.Sprintf("  Chapters:      %d\n", report.Totals.Chapters))
	builder.WriteString(fmt.Sprintf("  Sections:      %d\n", report.Totals.Sections))
	builder.WriteString("\n")

	if len(report.Jurisdictions) == 0 {
		return builder.String()
	}

	builder.WriteString("By Jurisdiction:\n")
	builder.WriteString(fmt.Sprintf("  %-24s %-14s %-10s %-7s %-9s %-9s %-10s %s\n",
		"Jurisdiction", "Source", "Status", "Titles", "Chapters", "Sections", "Duration", "Error"))
	builder.WriteString(fmt.Sprintf("  %-24s %-14s %-10s %-7s %-9s %-9s %-10s %s\n",
		"------------", "------", "------", "------", "--------", "--------", "--------", "-----"))

	for _, result := range report.Jurisdictions {
		builder.WriteString(fmt.Sprintf("  %-24s %-14s %-10s %-7d %-9d %-9d %-10s %s\n",
			truncateReportString(result.Key, 24),
			truncateReportString(result.Source, 14),
			result.Status,
			result.Stats.Titles,
			result.Stats.Chapters,
			result.Stats.Sections,
			result.Duration.Round(time.Millisecond),
			truncateReportString(result.Error, 60)))
	}

	return builder.String()
}

func (report *Report) formatJSON() string {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(reportJSON)
}

// truncateReportString truncates a string to maxLen runes.
func truncateReportString(inputStr string, maxLen int) string {
	runes := []rune(inputStr)
	if len(runes) <= maxLen {
		return inputStr
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
