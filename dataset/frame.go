// Package dataset loads labeled property tables and partitions them into
// reproducible train and test sets.
package dataset

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Frame is an in-memory table with a header and string cells. Categorical
// columns are used as-is; numeric columns are parsed on access.
type Frame struct {
	// Source is the path the frame was read from, if any. It is used in error messages.
	Source string
	Header []string
	Rows   [][]string

	indexOnce sync.Once
	index     map[string]int
}

// NewFrame builds a frame and checks that every row has one cell per header column.
func NewFrame(header []string, rows [][]string) (*Frame, error) {
	f := &Frame{Header: header, Rows: rows}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Frame) validate() error {
	seen := make(map[string]bool, len(f.Header))
	for _, h := range f.Header {
		if seen[h] {
			return errors.NewDataAccessError("NewFrame", f.Source, "duplicate column '"+h+"'", nil)
		}
		seen[h] = true
	}
	for i, row := range f.Rows {
		if len(row) != len(f.Header) {
			return errors.NewDataAccessError("NewFrame", f.Source,
				"row "+strconv.Itoa(i+1)+" has "+strconv.Itoa(len(row))+" cells, header has "+strconv.Itoa(len(f.Header)), nil)
		}
	}
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// ColumnIndex returns the position of a column, or -1. It is safe for
// concurrent use; Header must not change after the first call.
func (f *Frame) ColumnIndex(name string) int {
	f.indexOnce.Do(func() {
		f.index = make(map[string]int, len(f.Header))
		for i, h := range f.Header {
			f.index[h] = i
		}
	})
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// RequireColumns returns a DataAccessError naming the first missing column.
func (f *Frame) RequireColumns(names ...string) error {
	for _, name := range names {
		if !f.HasColumn(name) {
			return errors.NewDataAccessError("RequireColumns", f.Source, "missing column '"+name+"'", nil)
		}
	}
	return nil
}

// Column returns a copy of the named column's cells with surrounding spaces trimmed.
func (f *Frame) Column(name string) ([]string, error) {
	j := f.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewMissingFeatureError("transform", name)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = strings.TrimSpace(row[j])
	}
	return out, nil
}

// FloatColumn parses the named column as float64. Empty cells and cells that
// are not numbers are rejected with the row number.
func (f *Frame) FloatColumn(name string) ([]float64, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, perr := strconv.ParseFloat(c, 64)
		if perr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewDataAccessError("FloatColumn", f.Source,
				"column '"+name+"' row "+strconv.Itoa(i+1)+" is not a finite number: '"+c+"'", perr)
		}
		out[i] = v
	}
	return out, nil
}

// Subset returns a frame with the given rows in the given order. Rows are shared, not copied.
func (f *Frame) Subset(indices []int) *Frame {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = f.Rows[idx]
	}
	return &Frame{Source: f.Source, Header: f.Header, Rows: rows}
}

// Without returns a frame without the named column. Feature frames passed to
// inference code are built this way so that the label never leaks in.
func (f *Frame) Without(name string) *Frame {
	j := f.ColumnIndex(name)
	if j < 0 {
		return f
	}
	header := make([]string, 0, len(f.Header)-1)
	header = append(header, f.Header[:j]...)
	header = append(header, f.Header[j+1:]...)

	rows := make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		r := make([]string, 0, len(row)-1)
		r = append(r, row[:j]...)
		r = append(r, row[j+1:]...)
		rows[i] = r
	}
	return &Frame{Source: f.Source, Header: header, Rows: rows}
}
