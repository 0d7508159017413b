package database

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeMySQLValue(t *testing.T) {
	tests := []struct {
		name    string
		colType string
		in      any
		want    any
	}{
		{"text column", "varchar", []byte("hello"), "hello"},
		{"decimal column", "decimal", []byte("1234.5600"), decimal.RequireFromString("1234.5600")},
		{"numeric column", "numeric", []byte("-0.01"), decimal.RequireFromString("-0.01")},
		{"malformed decimal passes through as text", "decimal", []byte("not-a-number"), "not-a-number"},
		{"blob stays bytes", "blob", []byte{0x01, 0x02}, []byte{0x01, 0x02}},
		{"non-bytes untouched", "bigint", int64(42), int64(42)},
		{"nil untouched", "varchar", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeMySQLValue(tt.colType, tt.in)
			switch want := tt.want.(type) {
			case decimal.Decimal:
				d, ok := got.(decimal.Decimal)
				if !ok || !d.Equal(want) {
					t.Errorf("normalizeMySQLValue(%s, %v) = %v, want %v", tt.colType, tt.in, got, want)
				}
			case []byte:
				b, ok := got.([]byte)
				if !ok || string(b) != string(want) {
					t.Errorf("normalizeMySQLValue(%s, %v) = %v, want %v", tt.colType, tt.in, got, want)
				}
			default:
				if got != tt.want {
					t.Errorf("normalizeMySQLValue(%s, %v) = %v, want %v", tt.colType, tt.in, got, want)
				}
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in     string
		want   Type
		wantOK bool
	}{
		{"postgresql", TypePostgres, true},
		{"postgres", TypePostgres, true},
		{"mysql", TypeMySQL, true},
		{"sqlite", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseType(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
