package output

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/brightsync"
)

var summaryHeaders = []string{
	"Store", "Operation", "Status", "Conflicts", "Cleared", "Synced", "Skipped",
	"Unchanged", "Updated", "Queued", "Dead", "Duration",
}

// SummaryTable lays out run summaries, one row per store.
func SummaryTable(summaries []*brightsync.Summary) Data {
	title := cases.Title(language.English)
	data := Data{Headers: summaryHeaders}
	for _, s := range summaries {
		data.Rows = append(data.Rows, []string{
			s.Store,
			title.String(string(s.Operation)),
			Status(s),
			strconv.Itoa(s.ConflictsFound),
			strconv.Itoa(s.ConflictsCleared + s.Cleared),
			strconv.Itoa(s.SKUsSynced),
			strconv.Itoa(s.SKUsSkipped),
			strconv.Itoa(s.ProductsUnchanged),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Queued),
			strconv.Itoa(s.DeadLetters),
			s.Duration,
		})
	}
	return data
}

// Status condenses a summary to failed, partial (recoverable errors) or ok.
// Failed rows carry the first line of the error.
func Status(s *brightsync.Summary) string {
	switch {
	case s.Failed():
		msg, _, _ := strings.Cut(s.Err.Error(), "\n")
		return "failed: " + msg
	case len(s.Errors) > 0:
		return "partial (" + strconv.Itoa(len(s.Errors)) + " errors)"
	default:
		return "ok"
	}
}
