package dataset

import (
	"math"

	"github.com/rotisserie/eris"
)

type derivedColumn struct {
	name   string
	values []string
}

// View is a borrowed, ordered selection of rows from a Collection, optionally
// carrying derived columns. The source collection is never modified through a
// view; adding a derived column yields a new View.
type View struct {
	src     *Collection
	rows    []int
	derived []derivedColumn
}

// NewView builds a view over the given source row positions.
func NewView(src *Collection, rows []int) *View {
	return &View{src: src, rows: rows}
}

// Source returns the collection this view borrows from.
func (v *View) Source() *Collection { return v.src }

// Len returns the number of rows in the view.
func (v *View) Len() int { return len(v.rows) }

// SourceIndex maps a view row to its position in the source collection.
func (v *View) SourceIndex(i int) int { return v.rows[i] }

// Columns returns base column names followed by derived column names. A
// derived column that replaces a base column keeps the base position.
func (v *View) Columns() []string {
	out := v.src.ColumnNames()
	for _, d := range v.derived {
		if _, ok := v.src.Index(d.name); !ok {
			out = append(out, d.name)
		}
	}
	return out
}

// HasColumn reports whether name is a base or derived column.
func (v *View) HasColumn(name string) bool {
	if _, ok := v.src.Index(name); ok {
		return true
	}
	return v.derivedIndex(name) >= 0
}

// IsDerived reports whether name was attached to the view rather than read
// from the source.
func (v *View) IsDerived(name string) bool { return v.derivedIndex(name) >= 0 }

// Kind returns the kind of a column; derived columns are categorical.
func (v *View) Kind(name string) (Kind, bool) {
	if v.derivedIndex(name) >= 0 {
		return KindCategorical, true
	}
	if k, ok := v.src.Kind(name); ok {
		return k, true
	}
	return KindText, false
}

// Text returns the cell text of column name at view row i.
func (v *View) Text(i int, name string) string {
	if d := v.derivedIndex(name); d >= 0 {
		return v.derived[d].values[i]
	}
	if _, ok := v.src.Index(name); ok {
		return v.src.Text(v.rows[i], name)
	}
	return ""
}

// Number returns the numeric value of a base column at view row i.
func (v *View) Number(i int, name string) float64 {
	if _, ok := v.src.Index(name); !ok || v.IsDerived(name) {
		return math.NaN()
	}
	return v.src.Number(v.rows[i], name)
}

// Row returns the cells of view row i in Columns order.
func (v *View) Row(i int) []string {
	base := v.src.Record(v.rows[i]).Cells
	out := make([]string, 0, len(base)+len(v.derived))
	out = append(out, base...)
	for _, d := range v.derived {
		if j, ok := v.src.Index(d.name); ok {
			out[j] = d.values[i]
			continue
		}
		out = append(out, d.values[i])
	}
	return out
}

// At returns the typed sampling fields of view row i.
func (v *View) At(i int) SamplingRecord { return v.src.At(v.rows[i]) }

// WithColumn returns a new view with an extra derived column. values must hold
// exactly one entry per view row, in view order.
func (v *View) WithColumn(name string, values []string) (*View, error) {
	if len(values) != len(v.rows) {
		return nil, eris.Errorf("dataset: derived column %q has %d values for %d rows", name, len(values), len(v.rows))
	}
	if v.HasColumn(name) {
		return nil, eris.Errorf("dataset: column %q already exists", name)
	}
	vals := make([]string, len(values))
	copy(vals, values)
	derived := make([]derivedColumn, len(v.derived), len(v.derived)+1)
	copy(derived, v.derived)
	derived = append(derived, derivedColumn{name: name, values: vals})
	return &View{src: v.src, rows: v.rows, derived: derived}, nil
}

// ReplaceColumn is WithColumn for a column that may already exist: an
// existing derived column gets the new values and a base column of the same
// name is shadowed in place. The source collection is untouched.
func (v *View) ReplaceColumn(name string, values []string) (*View, error) {
	if len(values) != len(v.rows) {
		return nil, eris.Errorf("dataset: derived column %q has %d values for %d rows", name, len(values), len(v.rows))
	}
	vals := make([]string, len(values))
	copy(vals, values)
	derived := make([]derivedColumn, len(v.derived), len(v.derived)+1)
	copy(derived, v.derived)
	if d := v.derivedIndex(name); d >= 0 {
		derived[d] = derivedColumn{name: name, values: vals}
	} else {
		derived = append(derived, derivedColumn{name: name, values: vals})
	}
	return &View{src: v.src, rows: v.rows, derived: derived}, nil
}

func (v *View) derivedIndex(name string) int {
	for i, d := range v.derived {
		if d.name == name {
			return i
		}
	}
	return -1
}
