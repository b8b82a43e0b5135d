package table

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Table is an in-memory CSV report: a header plus rows of trimmed cells.
// Every row carries its parsed date so joins never re-parse text.
type Table struct {
	Columns []string
	Rows    []Row

	dateColumn string
	index      map[string]int
}

// Row is one data line of a Table.
type Row struct {
	Date  civil.Date
	Cells []string

	// Source and Line locate the row in its input file for error messages.
	Source string
	Line   int
}

// New creates an empty table with the given header.
func New(dateColumn string, columns []string) *Table {
	t := &Table{
		Columns:    append([]string(nil), columns...),
		dateColumn: dateColumn,
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// DateColumn returns the name of the column parsed into Row.Date.
func (t *Table) DateColumn() string {
	return t.dateColumn
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table has a column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Value returns the cell of row r in column, or "" when the column is absent
// or the row is short.
func (t *Table) Value(r Row, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Require returns a *StructuralError naming every missing column.
func (t *Table) Require(source string, columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &StructuralError{
			Source: source,
			Msg:    fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// StructuralError is a fatal input problem: a missing column, an unparseable
// date or an unreadable file.
type StructuralError struct {
	Source string
	Line   int
	Msg    string
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}
