package filter

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

func collection(t *testing.T, csv string) *dataset.Collection {
	t.Helper()
	raw, err := dataset.Read(strings.NewReader(csv), "in.csv", dataset.ReadOptions{})
	require.NoError(t, err)
	c, err := dataset.Validate(raw, []string{"Profil", "Material", "Depth", "Ni (%)"})
	require.NoError(t, err)
	return c
}

const twoRecords = "Profil,Material,Depth,Ni (%)\nA,Ore,5,1.2\nB,Waste,15,0.1\n"

func TestApplyConcreteScenario(t *testing.T) {
	c := collection(t, twoRecords)
	v := Apply(c, Criteria{Profil: []string{"A"}, Material: []string{"Ore", "Waste"}, DepthMin: 0, DepthMax: 10})
	require.Equal(t, 1, v.Len())
	assert.Equal(t, []string{"A", "Ore", "5", "1.2"}, v.Row(0))
}

func TestApplyEmptySetsExcludeAll(t *testing.T) {
	c := collection(t, twoRecords)
	assert.Equal(t, 0, Apply(c, Criteria{Material: []string{"Ore"}, DepthMax: 100}).Len())
	assert.Equal(t, 0, Apply(c, Criteria{Profil: []string{"A"}, DepthMax: 100}).Len())
}

func TestApplyInvertedDepthRangeIsEmpty(t *testing.T) {
	c := collection(t, twoRecords)
	crit := FullDomain(c)
	crit.DepthMin, crit.DepthMax = 20, 1
	assert.Equal(t, 0, Apply(c, crit).Len())
}

func TestApplyInclusiveBounds(t *testing.T) {
	c := collection(t, twoRecords)
	crit := FullDomain(c)
	crit.DepthMin, crit.DepthMax = 5, 15
	assert.Equal(t, 2, Apply(c, crit).Len())
}

func TestDomainFirstSeenOrder(t *testing.T) {
	c := collection(t, "Profil,Material,Depth,Ni (%)\nP2,Waste,3,1\nP1,Ore,-2,1\nP2,Ore,9.5,1\n")
	d := Domain(c)
	assert.Equal(t, []string{"P2", "P1"}, d.Profil)
	assert.Equal(t, []string{"Waste", "Ore"}, d.Material)
	assert.Equal(t, -2.0, d.DepthMin)
	assert.Equal(t, 9.5, d.DepthMax)
	assert.Equal(t, 3, Apply(c, FullDomain(c)).Len())
}

func TestDomainEmptyCollection(t *testing.T) {
	c := collection(t, "Profil,Material,Depth,Ni (%)\n")
	d := Domain(c)
	assert.Empty(t, d.Profil)
	assert.Zero(t, d.DepthMin)
	assert.Zero(t, d.DepthMax)
}

func TestOverridesResolve(t *testing.T) {
	c := collection(t, twoRecords)
	maxDepth := 10.0
	crit := Overrides{Material: []string{"Ore"}, DepthMax: &maxDepth}.Resolve(c)
	assert.Equal(t, []string{"A", "B"}, crit.Profil)
	assert.Equal(t, []string{"Ore"}, crit.Material)
	assert.Equal(t, 5.0, crit.DepthMin)
	assert.Equal(t, 10.0, crit.DepthMax)
	assert.Equal(t, crit, Fixed(crit)(c))
}

func TestApplySoundAndComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	profils := []string{"A", "B", "C"}
	materials := []string{"Ore", "Waste", "Limonite", "Saprolite"}

	var b strings.Builder
	b.WriteString("Profil,Material,Depth,Ni (%)\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "%s,%s,%d,%.2f\n", profils[rng.Intn(len(profils))], materials[rng.Intn(len(materials))], rng.Intn(40), rng.Float64()*3)
	}
	c := collection(t, b.String())

	for trial := 0; trial < 50; trial++ {
		crit := Criteria{
			Profil:   pick(rng, profils),
			Material: pick(rng, materials),
			DepthMin: float64(rng.Intn(40)),
			DepthMax: float64(rng.Intn(40)),
		}
		v := Apply(c, crit)

		prev := -1
		got := map[int]bool{}
		for i := 0; i < v.Len(); i++ {
			src := v.SourceIndex(i)
			require.Greater(t, src, prev, "order must be preserved")
			prev = src
			require.True(t, crit.Matches(c.At(src)), "soundness")
			got[src] = true
		}
		for i := 0; i < c.Len(); i++ {
			if crit.Matches(c.At(i)) {
				require.True(t, got[i], "completeness: row %d missing", i)
			}
		}
	}
}

func pick(rng *rand.Rand, from []string) []string {
	var out []string
	for _, v := range from {
		if rng.Intn(2) == 0 {
			out = append(out, v)
		}
	}
	return out
}
