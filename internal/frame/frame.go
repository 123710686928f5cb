// Package frame holds the in-memory tabular representation of a loaded batch.
package frame

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Record is a single row keyed by column name.
type Record = map[string]any

// Frame is a column-ordered table. Rows are positional and always have
// len(Columns) cells; a nil cell is a null value.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// FromRecords builds a frame from records using the given column order.
// Missing keys become nulls.
func FromRecords(columns []string, records []Record) *Frame {
	f := New(columns...)
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// Append adds a row; short rows are padded with nulls.
func (f *Frame) Append(values ...any) {
	row := make([]any, len(f.Columns))
	copy(row, values)
	f.Rows = append(f.Rows, row)
}

// Count returns the number of rows.
func (f *Frame) Count() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, col := range f.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// Column returns the values of one column.
func (f *Frame) Column(name string) ([]any, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	values := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Head returns a frame with at most n leading rows. Rows are shared.
func (f *Frame) Head(n int) *Frame {
	return f.Limit(n)
}

// Limit is Head under the name used by sampling.
func (f *Frame) Limit(n int) *Frame {
	if n < 0 || n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(row Record) bool) *Frame {
	out := New(f.Columns...)
	for _, row := range f.Rows {
		if keep(f.record(row)) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Records converts rows to column-keyed records.
func (f *Frame) Records() []Record {
	records := make([]Record, len(f.Rows))
	for i, row := range f.Rows {
		records[i] = f.record(row)
	}
	return records
}

func (f *Frame) record(row []any) Record {
	rec := make(Record, len(f.Columns))
	for i, col := range f.Columns {
		rec[col] = row[i]
	}
	return rec
}

// Format renders the first n rows as an aligned text table.
func (f *Frame) Format(n int) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(f.Columns, "\t"))
	for _, row := range f.Head(n).Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "null"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	return sb.String()
}
