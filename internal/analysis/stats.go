package analysis

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// Precision is the number of decimal digits kept in every statistic.
const Precision = 2

// StatNames lists the statistics of a Summary in display order.
var StatNames = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Summary holds descriptive statistics of one numeric column within a group.
// Std is the sample standard deviation (n-1) and is NaN for a single value.
type Summary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// Values returns the statistics in StatNames order.
func (s Summary) Values() []float64 {
	return []float64{float64(s.Count), s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max}
}

// MetricSummary ties a Summary to its column.
type MetricSummary struct {
	Column string
	Summary
}

// Group is the per-category result; Metrics follow the requested column order.
type Group struct {
	Key     string
	Size    int
	Metrics []MetricSummary
}

// Metric returns the summary for column, if present.
func (g Group) Metric(column string) (Summary, bool) {
	for _, m := range g.Metrics {
		if m.Column == column {
			return m.Summary, true
		}
	}
	return Summary{}, false
}

// Stats is the grouped aggregate of a view. Groups are sorted by key and
// groups without records are never emitted.
type Stats struct {
	GroupColumn string
	Metrics     []string
	Groups      []Group
}

// CheckColumns verifies that groupColumn exists and every metric column is numeric.
func CheckColumns(c *dataset.Collection, groupColumn string, metrics []string) error {
	if _, ok := c.Index(groupColumn); !ok {
		return eris.Errorf("analysis: group column %q not found", groupColumn)
	}
	for _, m := range metrics {
		k, ok := c.Kind(m)
		if !ok {
			return eris.Errorf("analysis: metric column %q not found", m)
		}
		if k != dataset.KindNumeric {
			return eris.Errorf("analysis: metric column %q is %s, not numeric", m, k)
		}
	}
	return nil
}

// Summarize groups the view by groupColumn and describes each metric column.
// The result depends only on the multiset of rows, never on their order:
// every statistic is computed over the sorted values of its group.
func Summarize(v *dataset.View, groupColumn string, metrics []string) (*Stats, error) {
	if err := CheckColumns(v.Source(), groupColumn, metrics); err != nil {
		return nil, err
	}
	type acc struct {
		size int
		vals [][]float64
	}
	groups := map[string]*acc{}
	for i := 0; i < v.Len(); i++ {
		key := v.Text(i, groupColumn)
		g := groups[key]
		if g == nil {
			g = &acc{vals: make([][]float64, len(metrics))}
			groups[key] = g
		}
		g.size++
		for j, m := range metrics {
			x := v.Number(i, m)
			if math.IsNaN(x) {
				continue
			}
			g.vals[j] = append(g.vals[j], x)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	st := &Stats{GroupColumn: groupColumn, Metrics: append([]string(nil), metrics...)}
	for _, k := range keys {
		g := groups[k]
		out := Group{Key: k, Size: g.size, Metrics: make([]MetricSummary, len(metrics))}
		for j, m := range metrics {
			out.Metrics[j] = MetricSummary{Column: m, Summary: describe(g.vals[j])}
		}
		st.Groups = append(st.Groups, out)
	}
	return st, nil
}

func describe(vals []float64) Summary {
	n := len(vals)
	if n == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Std: nan, Min: nan, Q25: nan, Q50: nan, Q75: nan, Max: nan}
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)

	// Welford over the sorted values, so row order never changes the bits.
	var mean, m2 float64
	for i, x := range sorted {
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
	}
	std := math.NaN()
	if n > 1 {
		std = math.Sqrt(m2 / float64(n-1))
	}
	return Summary{
		Count: n,
		Mean:  round(mean),
		Std:   round(std),
		Min:   round(sorted[0]),
		Q25:   round(quantile(sorted, 0.25)),
		Q50:   round(quantile(sorted, 0.5)),
		Q75:   round(quantile(sorted, 0.75)),
		Max:   round(sorted[n-1]),
	}
}

// round keeps Precision decimals, halves to even.
func round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, Precision)
	return math.RoundToEven(x*p) / p
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
