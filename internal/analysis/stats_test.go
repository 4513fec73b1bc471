package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

func view(t *testing.T, csv string) *dataset.View {
	t.Helper()
	raw, err := dataset.Read(strings.NewReader(csv), "in.csv", dataset.ReadOptions{})
	require.NoError(t, err)
	c, err := dataset.Validate(raw, []string{"Material", "Depth", "Ni (%)", "Fe (%)"})
	require.NoError(t, err)
	return c.All()
}

func TestSummarizeSingleRecord(t *testing.T) {
	v := view(t, "Material,Depth,Ni (%),Fe (%)\nOre,5,1.2,20\n")
	st, err := Summarize(v, "Material", []string{"Ni (%)"})
	require.NoError(t, err)
	require.Len(t, st.Groups, 1)

	g := st.Groups[0]
	assert.Equal(t, "Ore", g.Key)
	ni, ok := g.Metric("Ni (%)")
	require.True(t, ok)
	assert.Equal(t, 1, ni.Count)
	assert.Equal(t, 1.2, ni.Mean)
	assert.True(t, math.IsNaN(ni.Std))
	assert.Equal(t, 1.2, ni.Min)
	assert.Equal(t, 1.2, ni.Max)
}

func TestSummarizeDescribe(t *testing.T) {
	v := view(t, "Material,Depth,Ni (%),Fe (%)\n"+
		"Ore,1,4,10\nWaste,2,0.1,5\nOre,3,1,10\nOre,4,3,10\nOre,5,2,10\n")
	st, err := Summarize(v, "Material", []string{"Ni (%)", "Fe (%)"})
	require.NoError(t, err)
	require.Len(t, st.Groups, 2)
	assert.Equal(t, "Ore", st.Groups[0].Key)
	assert.Equal(t, "Waste", st.Groups[1].Key)
	assert.Equal(t, 4, st.Groups[0].Size)

	ni, _ := st.Groups[0].Metric("Ni (%)")
	assert.Equal(t, Summary{Count: 4, Mean: 2.5, Std: 1.29, Min: 1, Q25: 1.75, Q50: 2.5, Q75: 3.25, Max: 4}, ni)

	fe, _ := st.Groups[0].Metric("Fe (%)")
	assert.Equal(t, 0.0, fe.Std)
	assert.Equal(t, []string{"Ni (%)", "Fe (%)"}, []string{st.Groups[0].Metrics[0].Column, st.Groups[0].Metrics[1].Column})
}

func TestSummarizeIgnoresRowOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	materials := []string{"Ore", "Waste", "Limonite"}
	rows := make([]string, 200)
	for i := range rows {
		rows[i] = fmt.Sprintf("%s,%d,%.4f,%.3f", materials[rng.Intn(3)], i, rng.Float64()*3, rng.Float64()*60)
	}
	header := "Material,Depth,Ni (%),Fe (%)\n"
	base, err := Summarize(view(t, header+strings.Join(rows, "\n")), "Material", []string{"Ni (%)", "Fe (%)"})
	require.NoError(t, err)

	for trial := 0; trial < 5; trial++ {
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		got, err := Summarize(view(t, header+strings.Join(rows, "\n")), "Material", []string{"Ni (%)", "Fe (%)"})
		require.NoError(t, err)
		require.Equal(t, base, got)
	}
}

func TestSummarizeEmptyViewOmitsGroups(t *testing.T) {
	v := view(t, "Material,Depth,Ni (%),Fe (%)\nOre,5,1.2,20\n")
	empty := dataset.NewView(v.Source(), nil)
	st, err := Summarize(empty, "Material", []string{"Ni (%)"})
	require.NoError(t, err)
	assert.Empty(t, st.Groups)
	assert.Contains(t, st.Markdown(), "(no records)")
}

func TestSummarizeRejectsBadColumns(t *testing.T) {
	v := view(t, "Material,Depth,Ni (%),Fe (%)\nOre,5,1.2,20\n")
	_, err := Summarize(v, "Profil", []string{"Ni (%)"})
	require.Error(t, err)
	_, err = Summarize(v, "Material", []string{"Co (%)"})
	require.Error(t, err)
	_, err = Summarize(v, "Depth", []string{"Material"})
	require.Error(t, err)
}

func TestRoundHalfToEven(t *testing.T) {
	assert.Equal(t, 0.12, round(0.125))
	assert.Equal(t, 2.0, round(1.999))
	assert.True(t, math.IsNaN(round(math.NaN())))
}

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, quantile(s, 0))
	assert.Equal(t, 3.0, quantile(s, 0.5))
	assert.Equal(t, 5.0, quantile(s, 1))
	assert.Equal(t, 2.0, quantile(s, 0.25))
	assert.Equal(t, 0.0, quantile(nil, 0.5))
}

func TestMarkdown(t *testing.T) {
	v := view(t, "Material,Depth,Ni (%),Fe (%)\nOre,5,1.2,20\nOre,6,1.4,22\n")
	st, err := Summarize(v, "Material", []string{"Ni (%)"})
	require.NoError(t, err)
	md := st.Markdown()
	assert.Contains(t, md, "[STATS PER MATERIAL]")
	assert.Contains(t, md, "- Ni (%)")
	assert.Contains(t, md, "| Material | count | mean | std | min | 25% | 50% | 75% | max |")
	assert.Contains(t, md, "| Ore | 2 | 1.30 | 0.14 | 1.20 |")
}
