// Package suggest decides when a query result is worth offering as a
// file export, and in which format.
package suggest

import (
	"strings"
)

// Row count thresholds for result-driven suggestions.
const (
	// suggestRowThreshold is the result size above which an export is
	// suggested even without explicit intent.
	suggestRowThreshold = 50

	// strongRowThreshold marks results large enough that viewing them
	// inline is impractical.
	strongRowThreshold = 500
)

// Suggestion is the outcome of analyzing a request for export intent.
type Suggestion struct {
	Suggested  bool    `json:"suggested"`
	Confidence float64 `json:"confidence"`
	Format     string  `json:"format,omitempty"`
	Scope      string  `json:"scope,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// intentKeywords signal that the user asked for a file.
var intentKeywords = []string{
	"export", "download", "save to file", "save as", "to a file",
	"spreadsheet", "excel",
}

// formatKeywords map mentions to an export format.
var formatKeywords = []struct {
	words  []string
	format string
}{
	{[]string{"csv", "comma separated", "spreadsheet", "excel"}, "csv"},
	{[]string{"json"}, "json"},
	{[]string{"markdown", "md table"}, "markdown"},
}

// scopeKeywords signal the user wants everything, not just the page on
// screen.
var scopeKeywords = []string{"all rows", "all data", "everything", "full result", "entire"}

// Analyze inspects a free-text request and the size of the result it
// produced, and returns whether to offer an export. Explicit intent
// keywords dominate; large results alone produce a weaker suggestion.
func Analyze(message string, rowCount int64) Suggestion {
	text := strings.ToLower(message)

	var s Suggestion
	switch {
	case containsAny(text, intentKeywords):
		s.Suggested = true
		s.Confidence = 0.9
		s.Reason = "request mentions exporting or downloading"
	case rowCount >= strongRowThreshold:
		s.Suggested = true
		s.Confidence = 0.7
		s.Reason = "result is too large to view inline"
	case rowCount >= suggestRowThreshold:
		s.Suggested = true
		s.Confidence = 0.5
		s.Reason = "result is large enough that a file may be easier to work with"
	default:
		return Suggestion{Confidence: 0.1}
	}

	s.Format = detectFormat(text)
	if containsAny(text, scopeKeywords) {
		s.Scope = "all_data"
	} else {
		s.Scope = "current_page"
	}
	return s
}

func detectFormat(text string) string {
	for _, fk := range formatKeywords {
		if containsAny(text, fk.words) {
			return fk.format
		}
	}
	return "csv"
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
