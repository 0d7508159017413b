// Package sqlcheck validates and rewrites user-supplied SQL before it
// reaches a database adapter. Only SELECT statements (including unions)
// are accepted; everything else is rejected before any round trip.
package sqlcheck

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"
)

// Result reports the outcome of validating one statement.
type Result struct {
	Valid bool
	// Error holds the rejection reason when Valid is false.
	Error string
}

// Validate parses the SQL and checks that it is a read-only SELECT.
func Validate(sql string) Result {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return Result{Valid: false, Error: fmt.Sprintf("SQL syntax error: %v", err)}
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return Result{Valid: true}
	default:
		return Result{Valid: false, Error: "only SELECT queries are allowed"}
	}
}

// WithLimit rewrites the query so it returns at most n rows, replacing
// any existing LIMIT clause. Used to cap sampling queries.
func WithLimit(sql string, n int) (string, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("SQL syntax error: %w", err)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		// unions and anything else keep their own limits; append is the
		// portable fallback
		return fmt.Sprintf("%s LIMIT %d", sql, n), nil
	}

	sel.Limit = &sqlparser.Limit{
		Rowcount: sqlparser.NewIntVal([]byte(strconv.Itoa(n))),
	}
	return sqlparser.String(sel), nil
}

// EnsureLimit adds a LIMIT clause only when the query has none. Used to
// enforce the default row cap on interactive queries.
func EnsureLimit(sql string, n int) (string, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("SQL syntax error: %w", err)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return sql, nil
	}
	if sel.Limit != nil {
		return sql, nil
	}

	sel.Limit = &sqlparser.Limit{
		Rowcount: sqlparser.NewIntVal([]byte(strconv.Itoa(n))),
	}
	return sqlparser.String(sel), nil
}

// StripLimit removes any caller-provided LIMIT clause. Used when an
// export runs with all-data scope and must re-run the query unbounded.
func StripLimit(sql string) (string, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("SQL syntax error: %w", err)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return sql, nil
	}
	if sel.Limit == nil {
		return sql, nil
	}

	sel.Limit = nil
	return sqlparser.String(sel), nil
}
