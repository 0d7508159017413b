package sqlcheck

import (
	"strings"
	"testing"
)

// TestValidate tests statement acceptance.
func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		wantValid bool
		wantErr   string
	}{
		{"plain select", "SELECT id, name FROM users", true, ""},
		{"select with where and order", "SELECT * FROM orders WHERE total > 10 ORDER BY id", true, ""},
		{"union", "SELECT id FROM a UNION SELECT id FROM b", true, ""},
		{"insert rejected", "INSERT INTO users (id) VALUES (1)", false, "only SELECT queries are allowed"},
		{"update rejected", "UPDATE users SET name = 'x'", false, "only SELECT queries are allowed"},
		{"delete rejected", "DELETE FROM users", false, "only SELECT queries are allowed"},
		{"ddl rejected", "DROP TABLE users", false, "only SELECT queries are allowed"},
		{"garbage is a syntax error", "SELECT FROM FROM", false, "SQL syntax error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.sql)
			if res.Valid != tt.wantValid {
				t.Fatalf("Validate(%q).Valid = %v, want %v (error %q)", tt.sql, res.Valid, tt.wantValid, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error %q does not contain %q", res.Error, tt.wantErr)
			}
		})
	}
}

// TestWithLimit tests limit injection and replacement.
func TestWithLimit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		n    int
		want string
	}{
		{"adds limit", "SELECT * FROM users", 100, "select * from users limit 100"},
		{"replaces limit", "SELECT * FROM users LIMIT 5000", 100, "select * from users limit 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithLimit(tt.sql, tt.n)
			if err != nil {
				t.Fatalf("WithLimit() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("WithLimit() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestEnsureLimit tests that existing limits are preserved.
func TestEnsureLimit(t *testing.T) {
	got, err := EnsureLimit("SELECT * FROM users LIMIT 5", 100)
	if err != nil {
		t.Fatalf("EnsureLimit() failed: %v", err)
	}
	if got != "SELECT * FROM users LIMIT 5" {
		t.Errorf("EnsureLimit() rewrote a limited query: %q", got)
	}

	got, err = EnsureLimit("SELECT * FROM users", 100)
	if err != nil {
		t.Fatalf("EnsureLimit() failed: %v", err)
	}
	if got != "select * from users limit 100" {
		t.Errorf("EnsureLimit() = %q", got)
	}
}

// TestStripLimit tests limit removal.
func TestStripLimit(t *testing.T) {
	got, err := StripLimit("SELECT * FROM users LIMIT 50")
	if err != nil {
		t.Fatalf("StripLimit() failed: %v", err)
	}
	if strings.Contains(strings.ToLower(got), "limit") {
		t.Errorf("StripLimit() left a limit: %q", got)
	}

	// No limit is a no-op that preserves the original text
	got, err = StripLimit("SELECT * FROM users")
	if err != nil {
		t.Fatalf("StripLimit() failed: %v", err)
	}
	if got != "SELECT * FROM users" {
		t.Errorf("StripLimit() = %q, want original", got)
	}
}
