package table

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// readConcurrency bounds parallel file reads in LoadAndMerge.
const readConcurrency = 4

// Spec describes how one report family is read and deduplicated.
type Spec struct {
	DateColumn string
	Required   []string

	// Key lists the columns identifying a row; the first occurrence wins.
	Key []string
}

// Load reads a single file.
func Load(ctx context.Context, src Source, name string, spec Spec) (*Table, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, &StructuralError{Source: name, Msg: fmt.Sprintf("open: %v", err)}
	}
	defer rc.Close()

	return ReadCSV(rc, name, spec.DateColumn, spec.Required...)
}

// LoadAndMerge reads every file matching pattern and folds them, in sorted
// name order, into one deduplicated table. Reads run concurrently; the fold
// does not, so the first-seen row for a key is always from the
// lexicographically first file.
func LoadAndMerge(ctx context.Context, src Source, pattern string, spec Spec) (*Table, error) {
	names, err := src.List(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("LoadAndMerge: listing %q: %w", pattern, err)
	}
	if len(names) == 0 {
		return nil, &StructuralError{Source: pattern, Msg: "no files match"}
	}
	sort.Strings(names)

	tables := make([]*Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			t, err := Load(gctx, src, name, spec)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var acc *Table
	for _, t := range tables {
		acc = mergeStep(acc, t, spec.Key)
	}
	return acc, nil
}

// mergeStep is one step of the fold: concatenate then deduplicate,
// returning a new table and leaving both inputs untouched.
func mergeStep(acc, next *Table, key []string) *Table {
	if acc == nil {
		return Dedup(next, key...)
	}
	return Dedup(Concat(acc, next), key...)
}

// Concat appends b's rows to a's. Columns are unioned in first-seen order and
// cells of columns a row's file lacked are left empty.
func Concat(a, b *Table) *Table {
	columns := append([]string(nil), a.Columns...)
	for _, c := range b.Columns {
		if !a.Has(c) {
			columns = append(columns, c)
		}
	}
	out := New(a.dateColumn, columns)
	out.Rows = make([]Row, 0, len(a.Rows)+len(b.Rows))
	out.Rows = append(out.Rows, remap(a, out, a.Rows)...)
	out.Rows = append(out.Rows, remap(b, out, b.Rows)...)
	return out
}

func remap(from, to *Table, rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		cells := make([]string, len(to.Columns))
		for j, c := range to.Columns {
			cells[j] = from.Value(r, c)
		}
		r.Cells = cells
		out[i] = r
	}
	return out
}

// Dedup keeps the first row for each key. The date column, when part of the
// key, compares by parsed date rather than text.
func Dedup(t *Table, key ...string) *Table {
	out := New(t.dateColumn, t.Columns)
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		k := t.keyOf(r, key)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, r)
	}
	return out
}

func (t *Table) keyOf(r Row, key []string) string {
	parts := make([]string, len(key))
	for i, c := range key {
		if c == t.dateColumn {
			parts[i] = r.Date.String()
			continue
		}
		parts[i] = t.Value(r, c)
	}
	return strings.Join(parts, "\x1f")
}
