package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"skyline-data/tycho/pkg/database"
)

// CSVFields converts one row to ordered CSV field values. Quoting and
// escaping are handled by encoding/csv at write time.
func CSVFields(columns []database.Column, row database.Row) []string {
	fields := make([]string, len(columns))
	for i, col := range columns {
		fields[i] = FormatValue(row[col.Name])
	}
	return fields
}

// JSONLine converts one row to a JSON object with fields in column
// order. Decimals are emitted as strings to avoid float precision loss.
func JSONLine(columns []database.Column, row database.Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		value, err := json.Marshal(jsonValue(row[col.Name]))
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", col.Name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarkdownCells converts one row to ordered Markdown table cells with
// pipe characters escaped.
func MarkdownCells(columns []database.Column, row database.Row) []string {
	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = strings.ReplaceAll(FormatValue(row[col.Name]), "|", `\|`)
	}
	return cells
}

// FormatValue converts a normalized row value to its string form:
// empty string for nil, RFC 3339 for timestamps, the canonical decimal
// string for fixed-point numerics, and lossy-but-valid UTF-8 for binary.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case decimal.Decimal:
		return decimalString(val)
	case []byte:
		return toValidUTF8(val)
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// jsonValue converts a normalized row value to its JSON representation.
// Nil stays null; timestamps, decimals, and binary become strings; all
// other scalar types pass through.
func jsonValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339)
	case decimal.Decimal:
		return decimalString(val)
	case []byte:
		return toValidUTF8(val)
	default:
		return v
	}
}

// decimalString renders a decimal at its stored scale. String() trims
// trailing zeros, which would turn 1234.5600 into "1234.56" and lose
// the column's declared precision.
func decimalString(d decimal.Decimal) string {
	if d.Exponent() < 0 {
		return d.StringFixed(-d.Exponent())
	}
	return d.String()
}

// toValidUTF8 decodes bytes as UTF-8, substituting the replacement
// character for invalid sequences.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
