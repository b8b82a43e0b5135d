package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a report date in any of the supported layouts.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(ts), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognised date %q", s)
}

// ReadCSV reads a report with a header row. The date column and every
// required column must be present; each row's date must parse.
func ReadCSV(r io.Reader, source, dateColumn string, required ...string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &StructuralError{Source: source, Msg: "empty file, header row expected"}
		}
		return nil, &StructuralError{Source: source, Line: 1, Msg: fmt.Sprintf("read header: %v", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := New(dateColumn, header)
	if err := t.Require(source, append([]string{dateColumn}, required...)...); err != nil {
		return nil, err
	}
	dateIdx := t.index[dateColumn]

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &StructuralError{Source: source, Msg: err.Error()}
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}

		cells := make([]string, len(header))
		for i := range cells {
			if i < len(rec) {
				cells[i] = strings.TrimSpace(rec[i])
			}
		}

		date, err := ParseDate(cells[dateIdx])
		if err != nil {
			return nil, &StructuralError{Source: source, Line: line, Msg: fmt.Sprintf("column %q: %v", dateColumn, err)}
		}

		t.Rows = append(t.Rows, Row{Date: date, Cells: cells, Source: source, Line: line})
	}

	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes a header and rows with encoding/csv.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("WriteCSV: rows: %w", err)
	}
	return nil
}
