// Package testutil provides fakes for exercising the export pipeline
// without a live database.
package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"skyline-data/tycho/pkg/database"
)

// FakeAdapter is an in-memory database.Adapter serving canned rows.
// COUNT(*) wrapper queries are answered from the row count, everything
// else returns the configured result set.
type FakeAdapter struct {
	mu sync.Mutex

	// Cols and Rows are the canned result set.
	Cols []database.Column
	Rows []database.Row

	// QueryErr makes every query fail.
	QueryErr error

	// RowErr fails the stream after RowErrAfter rows.
	RowErr      error
	RowErrAfter int

	// RowDelay slows each streamed row, for cancellation tests.
	RowDelay time.Duration

	// Queries records every SQL string executed.
	Queries []string

	closed bool
}

// ExecuteQuery implements database.Adapter.
func (f *FakeAdapter) ExecuteQuery(ctx context.Context, sql string) (*database.QueryResult, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, sql)
	f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}

	if isCountQuery(sql) {
		return &database.QueryResult{
			Columns:  []database.Column{{Name: "total", Type: "bigint"}},
			Rows:     []database.Row{{"total": int64(len(f.Rows))}},
			RowCount: 1,
		}, nil
	}

	return &database.QueryResult{
		Columns:  f.Cols,
		Rows:     f.Rows,
		RowCount: int64(len(f.Rows)),
	}, nil
}

// StreamQuery implements database.Adapter.
func (f *FakeAdapter) StreamQuery(ctx context.Context, sql string) (database.RowStream, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, sql)
	f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return &fakeStream{adapter: f, ctx: ctx}, nil
}

// Ping implements database.Adapter.
func (f *FakeAdapter) Ping(ctx context.Context) error {
	if f.QueryErr != nil {
		return f.QueryErr
	}
	return nil
}

// Close implements database.Adapter.
func (f *FakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeAdapter) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func isCountQuery(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), "COUNT(*)")
}

type fakeStream struct {
	adapter *FakeAdapter
	ctx     context.Context
	pos     int
}

func (s *fakeStream) Columns() []database.Column {
	return s.adapter.Cols
}

func (s *fakeStream) Next() (database.Row, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if s.adapter.RowErr != nil && s.pos >= s.adapter.RowErrAfter {
		return nil, s.adapter.RowErr
	}
	if s.pos >= len(s.adapter.Rows) {
		return nil, io.EOF
	}
	if s.adapter.RowDelay > 0 {
		select {
		case <-time.After(s.adapter.RowDelay):
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}
	row := s.adapter.Rows[s.pos]
	s.pos++
	return row, nil
}

func (s *fakeStream) Close() error {
	return nil
}

// MakeRows builds n rows with id and name columns, for tests that need
// volume rather than particular values.
func MakeRows(n int) ([]database.Column, []database.Row) {
	cols := []database.Column{
		{Name: "id", Type: "bigint"},
		{Name: "name", Type: "text"},
	}
	rows := make([]database.Row, n)
	for i := range rows {
		rows[i] = database.Row{
			"id":   int64(i + 1),
			"name": fmt.Sprintf("row-%d", i+1),
		}
	}
	return cols, rows
}
