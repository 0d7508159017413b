package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"skyline-data/tycho/pkg/database"
	"skyline-data/tycho/pkg/sqlcheck"
)

// Estimation strategies.
const (
	MethodMetadata = "metadata"
	MethodSample   = "sample"
	MethodActual   = "actual"
)

// Confidence levels reported with an estimate.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Bytes-per-row constants used by the metadata strategy.
const (
	bytesPerRowCSV      = 100
	bytesPerRowJSON     = 150
	bytesPerRowMarkdown = 120
)

// Sample size bounds for the sample strategy.
const (
	DefaultSampleSize = 100
	MinSampleSize     = 10
	MaxSampleSize     = 1000
)

// SizeEstimate is the result of an export size estimation.
type SizeEstimate struct {
	EstimatedBytes int64   `json:"estimatedBytes"`
	EstimatedMB    float64 `json:"estimatedMb"`
	RowCount       int64   `json:"rowCount"`
	BytesPerRow    float64 `json:"bytesPerRow"`
	Method         string  `json:"method"`
	Confidence     string  `json:"confidence"`
	SampleSize     *int    `json:"sampleSize,omitempty"`
}

// Estimator predicts export file sizes before the full query runs.
type Estimator struct {
	logger *slog.Logger
}

// NewEstimator creates an Estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		logger: slog.Default().With("component", "export.estimator"),
	}
}

// CountRows wraps the query in COUNT(*) and returns the number of rows
// it would produce. The query must already be validated.
func CountRows(ctx context.Context, adapter database.Adapter, sql string) (int64, error) {
	countSQL := fmt.Sprintf("SELECT COUNT(*) AS total FROM (%s) AS subq", sql)
	result, err := adapter.ExecuteQuery(ctx, countSQL)
	if err != nil {
		return 0, NewError(fmt.Sprintf("failed to count rows: %v", err), err)
	}
	if len(result.Rows) == 0 {
		return 0, nil
	}
	return toInt64(result.Rows[0]["total"]), nil
}

// EstimateMetadata estimates size as row count times a per-format
// constant. One COUNT query, low confidence.
func (e *Estimator) EstimateMetadata(ctx context.Context, adapter database.Adapter, sql string, format Format) (*SizeEstimate, error) {
	if res := sqlcheck.Validate(sql); !res.Valid {
		return nil, NewError(res.Error, nil)
	}

	rowCount, err := CountRows(ctx, adapter, sql)
	if err != nil {
		return nil, err
	}

	perRow := bytesPerRow(format)
	return &SizeEstimate{
		EstimatedBytes: rowCount * perRow,
		EstimatedMB:    float64(rowCount*perRow) / (1024 * 1024),
		RowCount:       rowCount,
		BytesPerRow:    float64(perRow),
		Method:         MethodMetadata,
		Confidence:     ConfidenceLow,
	}, nil
}

// EstimateSample serializes a bounded sample of rows in the target
// format and extrapolates the measured average row size to the full
// row count. Falls back to the metadata constant when the sample comes
// back empty.
func (e *Estimator) EstimateSample(ctx context.Context, adapter database.Adapter, sql string, format Format, sampleSize int) (*SizeEstimate, error) {
	if res := sqlcheck.Validate(sql); !res.Valid {
		return nil, NewError(res.Error, nil)
	}

	if sampleSize < MinSampleSize {
		sampleSize = MinSampleSize
	} else if sampleSize > MaxSampleSize {
		sampleSize = MaxSampleSize
	}

	rowCount, err := CountRows(ctx, adapter, sql)
	if err != nil {
		return nil, err
	}

	sampleSQL, err := sqlcheck.WithLimit(sql, sampleSize)
	if err != nil {
		return nil, NewError(fmt.Sprintf("failed to build sample query: %v", err), err)
	}
	result, err := adapter.ExecuteQuery(ctx, sampleSQL)
	if err != nil {
		return nil, NewError(fmt.Sprintf("failed to sample rows: %v", err), err)
	}

	avg, sampled, err := measureRows(result, format)
	if err != nil {
		return nil, err
	}
	if sampled == 0 {
		e.logger.Debug("empty sample, falling back to metadata constant", "format", format)
		avg = float64(bytesPerRow(format))
	}

	return &SizeEstimate{
		EstimatedBytes: int64(avg * float64(rowCount)),
		EstimatedMB:    avg * float64(rowCount) / (1024 * 1024),
		RowCount:       rowCount,
		BytesPerRow:    avg,
		Method:         MethodSample,
		Confidence:     ConfidenceMedium,
		SampleSize:     &sampled,
	}, nil
}

// EstimateActual serializes the entire result set and measures it.
// Exact but as expensive as the export itself, so it is reserved for
// internal use rather than the size-check endpoint.
func (e *Estimator) EstimateActual(ctx context.Context, adapter database.Adapter, sql string, format Format) (*SizeEstimate, error) {
	if res := sqlcheck.Validate(sql); !res.Valid {
		return nil, NewError(res.Error, nil)
	}

	result, err := adapter.ExecuteQuery(ctx, sql)
	if err != nil {
		return nil, NewError(fmt.Sprintf("query failed: %v", err), err)
	}

	avg, n, err := measureRows(result, format)
	if err != nil {
		return nil, err
	}
	total := int64(avg * float64(n))
	return &SizeEstimate{
		EstimatedBytes: total,
		EstimatedMB:    float64(total) / (1024 * 1024),
		RowCount:       int64(n),
		BytesPerRow:    avg,
		Method:         MethodActual,
		Confidence:     ConfidenceHigh,
	}, nil
}

// measureRows returns the average serialized row size in the given
// format and the number of rows measured.
func measureRows(result *database.QueryResult, format Format) (float64, int, error) {
	if len(result.Rows) == 0 {
		return 0, 0, nil
	}
	var total int
	for _, row := range result.Rows {
		n, err := rowSize(result.Columns, row, format)
		if err != nil {
			return 0, 0, err
		}
		total += n
	}
	return float64(total) / float64(len(result.Rows)), len(result.Rows), nil
}

func rowSize(columns []database.Column, row database.Row, format Format) (int, error) {
	switch format {
	case FormatJSON:
		line, err := JSONLine(columns, row)
		if err != nil {
			return 0, NewError(fmt.Sprintf("failed to serialize sample row: %v", err), err)
		}
		// +2 for the separator and newline in the streamed array
		return len(line) + 2, nil
	case FormatMarkdown:
		cells := MarkdownCells(columns, row)
		n := 2 // leading pipe and newline
		for _, c := range cells {
			n += len(c) + 3
		}
		return n, nil
	default:
		fields := CSVFields(columns, row)
		n := len(fields) // separators and newline
		for _, f := range fields {
			n += len(f)
		}
		return n, nil
	}
}

func bytesPerRow(format Format) int64 {
	switch format {
	case FormatJSON:
		return bytesPerRowJSON
	case FormatMarkdown:
		return bytesPerRowMarkdown
	default:
		return bytesPerRowCSV
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case uint64:
		return int64(n)
	case decimal.Decimal:
		return n.IntPart()
	default:
		return 0
	}
}
