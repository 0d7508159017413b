package suggest

import "testing"

// TestAnalyze tests intent and size-driven suggestions.
func TestAnalyze(t *testing.T) {
	tests := []struct {
		name          string
		message       string
		rowCount      int64
		wantSuggested bool
		wantFormat    string
		wantScope     string
	}{
		{"explicit export intent", "please export these results", 5, true, "csv", "current_page"},
		{"download intent with json", "can I download this as json?", 5, true, "json", "current_page"},
		{"all data scope", "export all rows to a spreadsheet", 5, true, "csv", "all_data"},
		{"markdown mention", "save as a markdown table", 5, true, "markdown", "current_page"},
		{"small result, no intent", "show me the top customers", 10, false, "", ""},
		{"large result without intent", "list every order", 600, true, "csv", "current_page"},
		{"medium result without intent", "list orders", 80, true, "csv", "current_page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.message, tt.rowCount)
			if got.Suggested != tt.wantSuggested {
				t.Fatalf("Suggested = %v, want %v", got.Suggested, tt.wantSuggested)
			}
			if !tt.wantSuggested {
				return
			}
			if got.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", got.Format, tt.wantFormat)
			}
			if got.Scope != tt.wantScope {
				t.Errorf("Scope = %q, want %q", got.Scope, tt.wantScope)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %f out of range", got.Confidence)
			}
			if got.Reason == "" {
				t.Error("suggestion missing reason")
			}
		})
	}
}

// TestAnalyze_IntentBeatsSize tests that explicit intent gets higher
// confidence than size alone.
func TestAnalyze_IntentBeatsSize(t *testing.T) {
	intent := Analyze("export this", 5)
	size := Analyze("list orders", 600)

	if intent.Confidence <= size.Confidence {
		t.Errorf("intent confidence %f should exceed size confidence %f",
			intent.Confidence, size.Confidence)
	}
}
