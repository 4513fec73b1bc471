package dataset

import "math"

// Column names fixed by the sampling input contract.
const (
	ColProfil   = "Profil"
	ColMaterial = "Material"
	ColDepth    = "Depth"
	ColX        = "X"
	ColY        = "Y"
	ColZ        = "Z"

	// ColOreClass is the derived column added by classification.
	ColOreClass = "OreClassPredicted"
	// ColCreatedAt tags every classification log row with its run timestamp.
	ColCreatedAt = "created_at"
)

// DefaultAssayColumns is the assay set the grade model is trained on.
var DefaultAssayColumns = []string{"Ni (%)", "Fe (%)", "SiO2 (%)", "MgO (%)"}

var baseColumns = []string{ColProfil, ColMaterial, ColDepth, ColX, ColY, ColZ}

// RequiredColumns returns the fixed sampling columns followed by the given assay columns.
func RequiredColumns(assays []string) []string {
	out := make([]string, 0, len(baseColumns)+len(assays))
	out = append(out, baseColumns...)
	for _, a := range assays {
		if !contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// Kind is the inferred type of a column.
type Kind int

const (
	KindText Kind = iota
	KindCategorical
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindCategorical:
		return "categorical"
	case KindNumeric:
		return "numeric"
	default:
		return "text"
	}
}

// Column describes one column of a validated collection.
type Column struct {
	Name string
	Kind Kind
}

// Record is one validated row. Cells keep the original text, Values the parsed
// number for numeric columns (NaN elsewhere). Both are read-only once built.
type Record struct {
	Cells  []string
	Values []float64
}

// SamplingRecord is the typed view of a single sampling row.
type SamplingRecord struct {
	Profil   string
	Material string
	Depth    float64
	X, Y, Z  float64
	Assays   map[string]float64
}

// Collection is an ordered set of records sharing one column schema. It is
// built only by Validate and never mutated afterwards.
type Collection struct {
	Name    string
	columns []Column
	index   map[string]int
	records []Record
}

func newCollection(name string, cols []Column, recs []Record) *Collection {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return &Collection{Name: name, columns: cols, index: idx, records: recs}
}

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// Columns returns a copy of the column schema.
func (c *Collection) Columns() []Column {
	out := make([]Column, len(c.columns))
	copy(out, c.columns)
	return out
}

// ColumnNames returns the column names in original order.
func (c *Collection) ColumnNames() []string {
	out := make([]string, len(c.columns))
	for i, col := range c.columns {
		out[i] = col.Name
	}
	return out
}

// Index returns the position of the named column.
func (c *Collection) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Kind returns the kind of the named column.
func (c *Collection) Kind(name string) (Kind, bool) {
	i, ok := c.index[name]
	if !ok {
		return KindText, false
	}
	return c.columns[i].Kind, true
}

// Record returns the i-th record. Callers must not modify its slices.
func (c *Collection) Record(i int) Record { return c.records[i] }

// Text returns the original cell text of column name at row i.
func (c *Collection) Text(i int, name string) string {
	j, ok := c.index[name]
	if !ok {
		return ""
	}
	return c.records[i].Cells[j]
}

// Number returns the parsed value of column name at row i, NaN when the
// column is absent or not numeric.
func (c *Collection) Number(i int, name string) float64 {
	j, ok := c.index[name]
	if !ok {
		return math.NaN()
	}
	return c.records[i].Values[j]
}

// At returns the typed sampling fields of row i.
func (c *Collection) At(i int) SamplingRecord {
	r := SamplingRecord{
		Profil:   c.Text(i, ColProfil),
		Material: c.Text(i, ColMaterial),
		Depth:    c.Number(i, ColDepth),
		X:        c.Number(i, ColX),
		Y:        c.Number(i, ColY),
		Z:        c.Number(i, ColZ),
		Assays:   map[string]float64{},
	}
	for j, col := range c.columns {
		if col.Kind != KindNumeric || contains(baseColumns, col.Name) {
			continue
		}
		r.Assays[col.Name] = c.records[i].Values[j]
	}
	return r
}

// All returns a view over every record.
func (c *Collection) All() *View {
	rows := make([]int, len(c.records))
	for i := range rows {
		rows[i] = i
	}
	return NewView(c, rows)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
