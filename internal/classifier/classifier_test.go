package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

const treeYAML = `features: ["Ni (%)", "Fe (%)", "SiO2 (%)", "MgO (%)"]
classes: [HG, LG, Waste]
nodes:
  - {feature: 0, threshold: 0.5, left: 1, right: 2}
  - {class: Waste}
  - {feature: 0, threshold: 1.4, left: 3, right: 4}
  - {class: LG}
  - {class: HG}
`

func records(t *testing.T, csv string) *dataset.View {
	t.Helper()
	raw, err := dataset.Read(strings.NewReader(csv), "in.csv", dataset.ReadOptions{})
	require.NoError(t, err)
	c, err := dataset.Validate(raw, dataset.RequiredColumns(dataset.DefaultAssayColumns))
	require.NoError(t, err)
	return c.All()
}

const sample = "Profil,Material,Depth,X,Y,Z,Ni (%),Fe (%),SiO2 (%),MgO (%)\n" +
	"A,Ore,5,1,1,1,1.2,15,40,20\n" +
	"B,Waste,15,1,1,1,0.1,8,55,30\n" +
	"A,Ore,7,1,1,1,1.9,42,10,3\n"

type stubModel struct {
	labels   []string
	err      error
	features []string
	got      [][]float64
}

func (s *stubModel) Predict(_ context.Context, x [][]float64) ([]string, error) {
	s.got = x
	return s.labels, s.err
}

type declaringModel struct {
	stubModel
}

func (d *declaringModel) Features() []string { return d.features }

func TestAdapterClassifyAttachesColumn(t *testing.T) {
	v := records(t, sample)
	m := &stubModel{labels: []string{"LG", "Waste", "HG"}}
	a := NewAdapter(m, dataset.DefaultAssayColumns)

	out, err := a.Classify(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, out.HasColumn(dataset.ColOreClass))
	assert.False(t, v.HasColumn(dataset.ColOreClass))
	assert.False(t, v.Source().All().HasColumn(dataset.ColOreClass))
	assert.Equal(t, "HG", out.Text(2, dataset.ColOreClass))
	require.Len(t, m.got, 3)
	assert.Equal(t, []float64{1.2, 15, 40, 20}, m.got[0])
}

func TestAdapterClassifyOverwritesStaleLabels(t *testing.T) {
	stale := "Profil,Material,Depth,X,Y,Z,Ni (%),Fe (%),SiO2 (%),MgO (%),OreClassPredicted\n" +
		"A,Ore,5,1,1,1,1.2,15,40,20,Waste\n" +
		"B,Waste,15,1,1,1,0.1,8,55,30,HG\n"
	v := records(t, stale)
	a := NewAdapter(&stubModel{labels: []string{"LG", "Waste"}}, dataset.DefaultAssayColumns)

	out, err := a.Classify(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, v.Columns(), out.Columns())
	assert.Equal(t, "LG", out.Text(0, dataset.ColOreClass))
	assert.Equal(t, "Waste", out.Text(1, dataset.ColOreClass))
	assert.Equal(t, "Waste", v.Text(0, dataset.ColOreClass))
}

func TestAdapterWithoutModel(t *testing.T) {
	a := NewAdapter(nil, dataset.DefaultAssayColumns)
	assert.False(t, a.Available())
	_, err := a.Classify(context.Background(), records(t, sample))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestAdapterMissingFeatures(t *testing.T) {
	a := NewAdapter(&stubModel{}, []string{"Ni (%)", "Co (%)"})
	_, err := a.Predict(context.Background(), records(t, sample))
	var fm *FeatureMismatchError
	require.ErrorAs(t, err, &fm)
	assert.Equal(t, []string{"Co (%)"}, fm.Missing)
}

func TestAdapterDeclaredFeaturesMustMatch(t *testing.T) {
	m := &declaringModel{stubModel{features: []string{"Fe (%)", "Ni (%)"}}}
	a := NewAdapter(m, []string{"Ni (%)", "Fe (%)"})
	_, err := a.Predict(context.Background(), records(t, sample))
	var fm *FeatureMismatchError
	require.ErrorAs(t, err, &fm)
	assert.Equal(t, []string{"Fe (%)", "Ni (%)"}, fm.Expected)
}

func TestAdapterLabelCountMismatch(t *testing.T) {
	a := NewAdapter(&stubModel{labels: []string{"HG"}}, dataset.DefaultAssayColumns)
	_, err := a.Predict(context.Background(), records(t, sample))
	require.Error(t, err)
}

func TestAdapterModelFailure(t *testing.T) {
	boom := errors.New("boom")
	a := NewAdapter(&stubModel{err: boom}, dataset.DefaultAssayColumns)
	_, err := a.Predict(context.Background(), records(t, sample))
	assert.ErrorIs(t, err, boom)
}

func TestAdapterEmptyViewSkipsModel(t *testing.T) {
	v := records(t, sample)
	m := &stubModel{err: errors.New("should not be called")}
	a := NewAdapter(m, dataset.DefaultAssayColumns)
	labels, err := a.Predict(context.Background(), dataset.NewView(v.Source(), nil))
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Nil(t, m.got)
}

func TestTreePredict(t *testing.T) {
	tree, err := ParseTree([]byte(treeYAML))
	require.NoError(t, err)
	a := NewAdapter(tree, dataset.DefaultAssayColumns)
	labels, err := a.Predict(context.Background(), records(t, sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"LG", "Waste", "HG"}, labels)
}

func TestParseTreeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no features":   "nodes: [{class: HG}]",
		"no nodes":      "features: [a]",
		"bad feature":   "features: [a]\nnodes: [{feature: 3, threshold: 1, left: 1, right: 2}, {class: x}, {class: y}]",
		"cycle":         "features: [a]\nnodes: [{feature: 0, threshold: 1, left: 0, right: 1}, {class: x}]",
		"unknown class": "features: [a]\nclasses: [HG]\nnodes: [{class: LG}]",
		"unknown field": "features: [a]\nnodes: [{class: HG}]\ndepth: 3",
		"not yaml":      "{{{",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTree([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadArtifact("")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = LoadArtifact(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrModelUnavailable)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes: ["), 0o644))
	_, err = LoadArtifact(bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelUnavailable)

	good := filepath.Join(dir, "model_grade.yaml")
	require.NoError(t, os.WriteFile(good, []byte(treeYAML), 0o644))
	tree, err := LoadArtifact(good)
	require.NoError(t, err)
	assert.Equal(t, dataset.DefaultAssayColumns, tree.Features())
}

func TestOpen(t *testing.T) {
	m, err := Open(ProviderArtifact, BackendConfig{Path: filepath.Join(t.TempDir(), "none.yaml")})
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Nil(t, m)

	m, err = Open(ProviderHTTP, BackendConfig{})
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Nil(t, m)

	m, err = Open(ProviderHTTP, BackendConfig{Host: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = Open("sklearn", BackendConfig{})
	require.Error(t, err)
}
