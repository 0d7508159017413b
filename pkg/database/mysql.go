package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// MySQLAdapter implements Adapter over database/sql with the go-sql-driver.
type MySQLAdapter struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenMySQL opens a MySQL adapter for the given connection config.
// The DSN is forced to parseTime=true so temporal columns scan as time.Time.
func OpenMySQL(_ context.Context, cfg ConnConfig) (*MySQLAdapter, error) {
	dsnCfg, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn for %q: %w", cfg.Name, err)
	}
	dsnCfg.ParseTime = true

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection for %q: %w", cfg.Name, err)
	}

	if cfg.MaxPoolSize > 0 {
		db.SetMaxOpenConns(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		db.SetMaxIdleConns(cfg.MinPoolSize)
	}

	return &MySQLAdapter{db: db, timeout: cfg.CommandTimeout}, nil
}

// ExecuteQuery runs the query and materializes all rows.
func (a *MySQLAdapter) ExecuteQuery(ctx context.Context, sqlText string) (*QueryResult, error) {
	start := time.Now()

	stream, err := a.StreamQuery(ctx, sqlText)
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
func (a *MySQLAdapter) StreamQuery(ctx context.Context, sqlText string) (RowStream, error) {
	var cancel context.CancelFunc
	if a.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
	}

	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("mysql query failed: %w", err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("mysql column metadata failed: %w", err)
	}

	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{
			Name: ct.Name(),
			Type: strings.ToLower(ct.DatabaseTypeName()),
		}
	}

	return &mysqlStream{rows: rows, columns: columns, cancel: cancel}, nil
}

// Ping verifies connectivity.
func (a *MySQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close releases the connection pool.
func (a *MySQLAdapter) Close() error {
	return a.db.Close()
}

// mysqlStream adapts *sql.Rows to RowStream.
type mysqlStream struct {
	rows    *sql.Rows
	columns []Column
	cancel  context.CancelFunc
}

func (s *mysqlStream) Columns() []Column {
	return s.columns
}

func (s *mysqlStream) Next() (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("mysql row read failed: %w", err)
		}
		return nil, io.EOF
	}

	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("mysql row scan failed: %w", err)
	}

	row := make(Row, len(s.columns))
	for i, col := range s.columns {
		row[col.Name] = normalizeMySQLValue(col.Type, values[i])
	}
	return row, nil
}

func (s *mysqlStream) Close() error {
	err := s.rows.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

// normalizeMySQLValue converts driver values to the normalized set
// documented on Row. The mysql driver hands back []byte for text and
// numeric-as-string columns, so conversion is keyed on the declared
// column type.
func normalizeMySQLValue(colType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}

	switch colType {
	case "decimal", "numeric":
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return string(b)
		}
		return d
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob", "bit":
		return b
	default:
		return string(b)
	}
}
