package export

import (
	"context"
	"testing"

	"skyline-data/tycho/internal/testutil"
)

// TestEstimateMetadata tests the per-format constants against a known
// row count.
func TestEstimateMetadata(t *testing.T) {
	cols, rows := testutil.MakeRows(40)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	est := NewEstimator()

	tests := []struct {
		format    Format
		wantBytes int64
	}{
		{FormatCSV, 40 * 100},
		{FormatJSON, 40 * 150},
		{FormatMarkdown, 40 * 120},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := est.EstimateMetadata(context.Background(), adapter, "SELECT * FROM users", tt.format)
			if err != nil {
				t.Fatalf("EstimateMetadata() failed: %v", err)
			}
			if got.EstimatedBytes != tt.wantBytes {
				t.Errorf("EstimatedBytes = %d, want %d", got.EstimatedBytes, tt.wantBytes)
			}
			if got.RowCount != 40 {
				t.Errorf("RowCount = %d, want 40", got.RowCount)
			}
			if got.Method != MethodMetadata || got.Confidence != ConfidenceLow {
				t.Errorf("unexpected method/confidence: %s/%s", got.Method, got.Confidence)
			}
		})
	}
}

// TestEstimateMetadata_InvalidSQL tests that non-SELECT statements are
// rejected before any query runs.
func TestEstimateMetadata_InvalidSQL(t *testing.T) {
	adapter := &testutil.FakeAdapter{}
	est := NewEstimator()

	_, err := est.EstimateMetadata(context.Background(), adapter, "DELETE FROM users", FormatCSV)
	if err == nil {
		t.Fatal("expected error for non-SELECT statement")
	}
	if len(adapter.Queries) != 0 {
		t.Errorf("expected no queries executed, got %v", adapter.Queries)
	}
}

// TestEstimateSample tests measured extrapolation.
func TestEstimateSample(t *testing.T) {
	cols, rows := testutil.MakeRows(200)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	est := NewEstimator()

	got, err := est.EstimateSample(context.Background(), adapter, "SELECT * FROM users", FormatCSV, 50)
	if err != nil {
		t.Fatalf("EstimateSample() failed: %v", err)
	}

	if got.Method != MethodSample || got.Confidence != ConfidenceMedium {
		t.Errorf("unexpected method/confidence: %s/%s", got.Method, got.Confidence)
	}
	if got.RowCount != 200 {
		t.Errorf("RowCount = %d, want 200", got.RowCount)
	}
	if got.BytesPerRow <= 0 {
		t.Errorf("BytesPerRow = %f, want positive measurement", got.BytesPerRow)
	}
	if got.EstimatedBytes != int64(got.BytesPerRow*200) {
		t.Errorf("EstimatedBytes inconsistent with BytesPerRow")
	}
	if got.SampleSize == nil {
		t.Fatal("SampleSize not reported")
	}
}

// TestEstimateSample_Idempotent tests that estimating twice gives the
// same answer and leaves the original query untouched.
func TestEstimateSample_Idempotent(t *testing.T) {
	cols, rows := testutil.MakeRows(30)
	est := NewEstimator()

	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	first, err := est.EstimateSample(context.Background(), adapter, "SELECT * FROM users", FormatJSON, 10)
	if err != nil {
		t.Fatalf("first estimate failed: %v", err)
	}
	second, err := est.EstimateSample(context.Background(), adapter, "SELECT * FROM users", FormatJSON, 10)
	if err != nil {
		t.Fatalf("second estimate failed: %v", err)
	}
	if first.EstimatedBytes != second.EstimatedBytes {
		t.Errorf("estimates differ: %d vs %d", first.EstimatedBytes, second.EstimatedBytes)
	}
}

// TestEstimateSample_ClampsBounds tests the sample size bounds.
func TestEstimateSample_ClampsBounds(t *testing.T) {
	cols, rows := testutil.MakeRows(5)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	est := NewEstimator()

	got, err := est.EstimateSample(context.Background(), adapter, "SELECT * FROM users", FormatCSV, 5)
	if err != nil {
		t.Fatalf("EstimateSample() failed: %v", err)
	}
	// 5 is below the minimum; the sample query should carry LIMIT 10
	found := false
	for _, q := range adapter.Queries {
		if q == "select * from users limit 10" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sample query with clamped limit, got %v", adapter.Queries)
	}
	_ = got
}

// TestEstimateActual tests exact measurement.
func TestEstimateActual(t *testing.T) {
	cols, rows := testutil.MakeRows(20)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	est := NewEstimator()

	got, err := est.EstimateActual(context.Background(), adapter, "SELECT * FROM users", FormatMarkdown)
	if err != nil {
		t.Fatalf("EstimateActual() failed: %v", err)
	}
	if got.Method != MethodActual || got.Confidence != ConfidenceHigh {
		t.Errorf("unexpected method/confidence: %s/%s", got.Method, got.Confidence)
	}
	if got.RowCount != 20 {
		t.Errorf("RowCount = %d, want 20", got.RowCount)
	}
}

// TestCountRows tests the COUNT wrapper.
func TestCountRows(t *testing.T) {
	cols, rows := testutil.MakeRows(7)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}

	n, err := CountRows(context.Background(), adapter, "SELECT * FROM users")
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if n != 7 {
		t.Errorf("CountRows() = %d, want 7", n)
	}
	if adapter.Queries[0] != "SELECT COUNT(*) AS total FROM (SELECT * FROM users) AS subq" {
		t.Errorf("unexpected count query: %s", adapter.Queries[0])
	}
}
