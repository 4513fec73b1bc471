// Package filter selects sampling records by profile, material and depth.
package filter

import (
	"math"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// Criteria is a conjunctive predicate over sampling records. An empty
// Profil or Material set matches nothing; use FullDomain for "no restriction".
// The depth range is inclusive on both bounds.
type Criteria struct {
	Profil   []string
	Material []string
	DepthMin float64
	DepthMax float64
}

// Matches reports whether r satisfies every part of the predicate.
func (c Criteria) Matches(r dataset.SamplingRecord) bool { return c.compile().match(r) }

// Apply returns the view of records in c matching crit, in source order.
func Apply(c *dataset.Collection, crit Criteria) *dataset.View {
	m := crit.compile()
	rows := make([]int, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if m.match(c.At(i)) {
			rows = append(rows, i)
		}
	}
	return dataset.NewView(c, rows)
}

type matcher struct {
	profil, material   map[string]struct{}
	depthMin, depthMax float64
}

func (c Criteria) compile() matcher {
	return matcher{
		profil:   toSet(c.Profil),
		material: toSet(c.Material),
		depthMin: c.DepthMin,
		depthMax: c.DepthMax,
	}
}

func (m matcher) match(r dataset.SamplingRecord) bool {
	if _, ok := m.profil[r.Profil]; !ok {
		return false
	}
	if _, ok := m.material[r.Material]; !ok {
		return false
	}
	return r.Depth >= m.depthMin && r.Depth <= m.depthMax
}

// DomainInfo describes the observed values a criteria can range over.
type DomainInfo struct {
	Profil   []string
	Material []string
	DepthMin float64
	DepthMax float64
}

// Domain returns the distinct Profil and Material values in first-seen order
// and the observed depth range. An empty collection has depth range [0, 0].
func Domain(c *dataset.Collection) DomainInfo {
	d := DomainInfo{DepthMin: math.Inf(1), DepthMax: math.Inf(-1)}
	seenP := map[string]struct{}{}
	seenM := map[string]struct{}{}
	for i := 0; i < c.Len(); i++ {
		r := c.At(i)
		if _, ok := seenP[r.Profil]; !ok {
			seenP[r.Profil] = struct{}{}
			d.Profil = append(d.Profil, r.Profil)
		}
		if _, ok := seenM[r.Material]; !ok {
			seenM[r.Material] = struct{}{}
			d.Material = append(d.Material, r.Material)
		}
		d.DepthMin = math.Min(d.DepthMin, r.Depth)
		d.DepthMax = math.Max(d.DepthMax, r.Depth)
	}
	if c.Len() == 0 {
		d.DepthMin, d.DepthMax = 0, 0
	}
	return d
}

// FullDomain returns criteria that match every record of c.
func FullDomain(c *dataset.Collection) Criteria {
	d := Domain(c)
	return Criteria{Profil: d.Profil, Material: d.Material, DepthMin: d.DepthMin, DepthMax: d.DepthMax}
}

// Selector resolves the criteria for a run once the collection is known.
type Selector func(*dataset.Collection) Criteria

// Fixed returns a Selector that always yields crit.
func Fixed(crit Criteria) Selector {
	return func(*dataset.Collection) Criteria { return crit }
}

// Overrides replaces parts of the full-domain default. Nil fields keep the
// default.
type Overrides struct {
	Profil   []string
	Material []string
	DepthMin *float64
	DepthMax *float64
}

// Resolve builds criteria from the full domain of c with o applied.
func (o Overrides) Resolve(c *dataset.Collection) Criteria {
	crit := FullDomain(c)
	if o.Profil != nil {
		crit.Profil = o.Profil
	}
	if o.Material != nil {
		crit.Material = o.Material
	}
	if o.DepthMin != nil {
		crit.DepthMin = *o.DepthMin
	}
	if o.DepthMax != nil {
		crit.DepthMax = *o.DepthMax
	}
	return crit
}

func toSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
