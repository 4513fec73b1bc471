package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SchemaError reports required columns absent from the input, or header
// names that appear more than once.
type SchemaError struct {
	Missing   []string
	Duplicate []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	return "schema: " + strings.Join(parts, "; ")
}

// ValueError reports a malformed cell in an otherwise well-formed table.
// Row is 1-based and counts data rows only.
type ValueError struct {
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *ValueError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d, column %q: %s (value %q)", e.Row, e.Column, e.Reason, e.Value)
}

// Validate checks that raw exposes every required column and that typed
// columns hold usable values, and returns the validated collection. Columns
// are never dropped or renamed.
//
// Profil and Material are categorical and must be non-empty. Depth, X, Y, Z
// and any required column beyond those are numeric and must be finite.
// Remaining columns are numeric when every non-empty value parses as a finite
// number, text otherwise.
func Validate(raw *RawTable, required []string) (*Collection, error) {
	if raw == nil {
		raw = &RawTable{}
	}
	// SQL identifiers fold case, so Ni and ni cannot both be stored.
	index := make(map[string]int, len(raw.Columns))
	folded := make(map[string]bool, len(raw.Columns))
	var dup []string
	for i, name := range raw.Columns {
		key := strings.ToLower(name)
		if folded[key] {
			if !contains(dup, name) {
				dup = append(dup, name)
			}
			continue
		}
		folded[key] = true
		index[name] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 || len(dup) > 0 {
		return nil, &SchemaError{Missing: missing, Duplicate: dup}
	}

	ncol := len(raw.Columns)
	for i, row := range raw.Rows {
		if len(row) > ncol {
			return nil, &ValueError{Row: i + 1, Reason: fmt.Sprintf("row has %d fields, header has %d", len(row), ncol)}
		}
	}

	cols := make([]Column, ncol)
	for j, name := range raw.Columns {
		cols[j] = Column{Name: name, Kind: declaredKind(name, required)}
	}
	for j := range cols {
		if cols[j].Kind == KindText && inferNumeric(raw.Rows, j) {
			cols[j].Kind = KindNumeric
		}
	}

	recs := make([]Record, len(raw.Rows))
	for i, row := range raw.Rows {
		cells := make([]string, ncol)
		copy(cells, row)
		vals := make([]float64, ncol)
		for j, col := range cols {
			vals[j] = math.NaN()
			v := cells[j]
			switch col.Kind {
			case KindCategorical:
				if v == "" {
					return nil, &ValueError{Row: i + 1, Column: col.Name, Value: v, Reason: "empty categorical value"}
				}
			case KindNumeric:
				x, ok := parseFinite(v)
				if !ok {
					if v == "" && !isRequiredNumeric(col.Name, required) {
						continue
					}
					return nil, &ValueError{Row: i + 1, Column: col.Name, Value: v, Reason: "not a finite number"}
				}
				vals[j] = x
			}
		}
		recs[i] = Record{Cells: cells, Values: vals}
	}
	return newCollection(raw.Name, cols, recs), nil
}

func declaredKind(name string, required []string) Kind {
	switch name {
	case ColProfil, ColMaterial:
		return KindCategorical
	case ColDepth, ColX, ColY, ColZ:
		return KindNumeric
	}
	if contains(required, name) {
		return KindNumeric
	}
	return KindText
}

func isRequiredNumeric(name string, required []string) bool {
	switch name {
	case ColDepth, ColX, ColY, ColZ:
		return true
	}
	return contains(required, name)
}

func inferNumeric(rows [][]string, j int) bool {
	seen := false
	for _, row := range rows {
		if j >= len(row) || row[j] == "" {
			continue
		}
		if _, ok := parseFinite(row[j]); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
