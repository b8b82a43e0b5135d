package reports

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a float64 that may be missing, shaped like bigquery.NullFloat64.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float wraps a present value.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// OrNaN returns the value, or NaN when missing.
func (n NullFloat) OrNaN() float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// missingTokens are the cell values read as missing, the same set pandas
// treats as NA by default.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a cell should be read as a missing value.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// Parser converts one cell to a number. Missing cells must return an invalid
// NullFloat and no error.
type Parser func(string) (NullFloat, error)

// ParseNumber parses a plain decimal.
func ParseNumber(s string) (NullFloat, error) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return NullFloat{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NullFloat{}, fmt.Errorf("parse number %q: %w", s, strconv.ErrSyntax)
	}
	return Float(v), nil
}

// ParseAmount parses a currency amount such as "$1.25", stripping the symbol.
func ParseAmount(s string) (NullFloat, error) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"$", "€", "£", "¥"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	return ParseNumber(s)
}

// ParsePercent parses "12.5%" as 12.5, keeping percent units.
func ParsePercent(s string) (NullFloat, error) {
	return ParseNumber(strings.TrimRight(strings.TrimSpace(s), "%"))
}

// ParseCount parses counts that may carry thousands separators ("1,234").
func ParseCount(s string) (NullFloat, error) {
	return ParseNumber(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

// CoercionError reports the first cell of a column that could not be parsed.
type CoercionError struct {
	Column string
	Row    int
	Value  string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %q: row %d: value %q is not numeric", e.Column, e.Row, e.Value)
}

// CoerceColumn parses every cell of a column. If any cell is malformed the
// whole column is rejected: the result is nil and the error is a *CoercionError.
func CoerceColumn(column string, values []string, parse Parser) ([]NullFloat, error) {
	out := make([]NullFloat, len(values))
	for i, v := range values {
		f, err := parse(v)
		if err != nil {
			return nil, &CoercionError{Column: column, Row: i, Value: v}
		}
		out[i] = f
	}
	return out, nil
}
