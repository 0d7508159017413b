package database

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresAdapter implements Adapter over a pgx connection pool.
type PostgresAdapter struct {
	pool    *pgxpool.Pool
	typeMap *pgtype.Map
	timeout time.Duration
}

// OpenPostgres opens a PostgreSQL adapter for the given connection config.
func OpenPostgres(ctx context.Context, cfg ConnConfig) (*PostgresAdapter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url for %q: %w", cfg.Name, err)
	}

	if cfg.MinPoolSize > 0 {
		poolCfg.MinConns = int32(cfg.MinPoolSize)
	}
	if cfg.MaxPoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.MaxPoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool for %q: %w", cfg.Name, err)
	}

	return &PostgresAdapter{
		pool:    pool,
		typeMap: pgtype.NewMap(),
		timeout: cfg.CommandTimeout,
	}, nil
}

// ExecuteQuery runs the query and materializes all rows.
func (a *PostgresAdapter) ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error) {
	start := time.Now()

	stream, err := a.StreamQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	result := &QueryResult{Columns: stream.Columns(), Rows: []Row{}}
	for {
		row, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}

	result.RowCount = int64(len(result.Rows))
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// StreamQuery runs the query and returns a stream over the result rows.
func (a *PostgresAdapter) StreamQuery(ctx context.Context, sql string) (RowStream, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		// cancel is invoked by the stream's Close
		rows, err := a.pool.Query(ctx, sql)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("postgres query failed: %w", err)
		}
		return newPgxStream(rows, a.typeMap, cancel), nil
	}

	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	return newPgxStream(rows, a.typeMap, nil), nil
}

// Ping verifies connectivity.
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases the pool.
func (a *PostgresAdapter) Close() error {
	a.pool.Close()
	return nil
}

// pgxStream adapts pgx.Rows to RowStream.
type pgxStream struct {
	rows    pgx.Rows
	columns []Column
	cancel  context.CancelFunc
}

func newPgxStream(rows pgx.Rows, typeMap *pgtype.Map, cancel context.CancelFunc) *pgxStream {
	fields := rows.FieldDescriptions()
	columns := make([]Column, len(fields))
	for i, fd := range fields {
		typeName := "text"
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		columns[i] = Column{Name: fd.Name, Type: typeName}
	}
	return &pgxStream{rows: rows, columns: columns, cancel: cancel}
}

func (s *pgxStream) Columns() []Column {
	return s.columns
}

func (s *pgxStream) Next() (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("postgres row read failed: %w", err)
		}
		return nil, io.EOF
	}

	values, err := s.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("postgres row scan failed: %w", err)
	}

	row := make(Row, len(s.columns))
	for i, col := range s.columns {
		row[col.Name] = normalizePgValue(values[i])
	}
	return row, nil
}

func (s *pgxStream) Close() error {
	s.rows.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return s.rows.Err()
}

// normalizePgValue converts pgx-specific value types to the normalized
// set documented on Row.
func normalizePgValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid || val.NaN || val.Int == nil {
			return nil
		}
		return decimal.NewFromBigInt(val.Int, val.Exp)
	case [16]byte:
		// uuid columns scan as raw bytes
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	default:
		return v
	}
}
