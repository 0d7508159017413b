package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"skyline-data/tycho/pkg/database"
)

// rowWriter writes rows of one export format to an underlying stream.
// Begin is called once before any rows, End once after the last row.
type rowWriter interface {
	Begin(columns []database.Column) error
	WriteRow(row database.Row) error
	End() error
}

// newRowWriter returns the writer for the format.
func newRowWriter(format Format, w io.Writer) rowWriter {
	switch format {
	case FormatJSON:
		return &jsonRowWriter{w: bufio.NewWriter(w)}
	case FormatMarkdown:
		return &markdownRowWriter{w: bufio.NewWriter(w)}
	default:
		return newCSVRowWriter(w)
	}
}

// csvRowWriter writes a UTF-8 BOM, a header row, then one record per
// row. The BOM keeps Excel from mangling multibyte text.
type csvRowWriter struct {
	raw     io.Writer
	w       *csv.Writer
	columns []database.Column
}

func newCSVRowWriter(w io.Writer) *csvRowWriter {
	return &csvRowWriter{raw: w, w: csv.NewWriter(w)}
}

func (c *csvRowWriter) Begin(columns []database.Column) error {
	if _, err := c.raw.Write([]byte("\ufeff")); err != nil {
		return err
	}
	c.columns = columns
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	return c.w.Write(header)
}

func (c *csvRowWriter) WriteRow(row database.Row) error {
	return c.w.Write(CSVFields(c.columns, row))
}

func (c *csvRowWriter) End() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonRowWriter streams a single JSON array, one row object at a time,
// never holding the full result in memory.
type jsonRowWriter struct {
	w       *bufio.Writer
	columns []database.Column
	wrote   bool
}

func (j *jsonRowWriter) Begin(columns []database.Column) error {
	j.columns = columns
	return j.w.WriteByte('[')
}

func (j *jsonRowWriter) WriteRow(row database.Row) error {
	if j.wrote {
		if err := j.w.WriteByte(','); err != nil {
			return err
		}
	}
	j.wrote = true
	line, err := JSONLine(j.columns, row)
	if err != nil {
		return err
	}
	_, err = j.w.Write(line)
	return err
}

func (j *jsonRowWriter) End() error {
	if err := j.w.WriteByte(']'); err != nil {
		return err
	}
	return j.w.Flush()
}

// markdownRowWriter writes a Markdown table: header row, separator row,
// then one table row per record with pipes escaped.
type markdownRowWriter struct {
	w       *bufio.Writer
	columns []database.Column
}

func (m *markdownRowWriter) Begin(columns []database.Column) error {
	m.columns = columns

	names := make([]string, len(columns))
	seps := make([]string, len(columns))
	for i, col := range columns {
		names[i] = strings.ReplaceAll(col.Name, "|", `\|`)
		seps[i] = "---"
	}
	if _, err := fmt.Fprintf(m.w, "| %s |\n", strings.Join(names, " | ")); err != nil {
		return err
	}
	_, err := fmt.Fprintf(m.w, "| %s |\n", strings.Join(seps, " | "))
	return err
}

func (m *markdownRowWriter) WriteRow(row database.Row) error {
	_, err := fmt.Fprintf(m.w, "| %s |\n", strings.Join(MarkdownCells(m.columns, row), " | "))
	return err
}

func (m *markdownRowWriter) End() error {
	return m.w.Flush()
}
