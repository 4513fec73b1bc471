package classifier

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Tree is a trained decision tree exported as YAML (or JSON) by the training
// job. Node 0 is the root; an inner node sends x[Feature] <= Threshold to Left
// and everything else, NaN included, to Right.
type Tree struct {
	FeatureNames []string `yaml:"features"`
	Classes      []string `yaml:"classes"`
	Nodes        []Node   `yaml:"nodes"`
}

// Node is an inner split or, when Class is set, a leaf.
type Node struct {
	Feature   int     `yaml:"feature"`
	Threshold float64 `yaml:"threshold"`
	Left      int     `yaml:"left"`
	Right     int     `yaml:"right"`
	Class     string  `yaml:"class,omitempty"`
}

// LoadArtifact reads a tree from path. An empty path or a missing file yields
// ErrModelUnavailable; an unreadable or malformed file is an error.
func LoadArtifact(path string) (*Tree, error) {
	if path == "" {
		return nil, ErrModelUnavailable
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrModelUnavailable
		}
		return nil, eris.Wrapf(err, "classifier: read model %s", path)
	}
	t, err := ParseTree(b)
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: load model %s", path)
	}
	return t, nil
}

// ParseTree decodes and validates a tree document.
func ParseTree(b []byte) (*Tree, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var t Tree
	if err := dec.Decode(&t); err != nil {
		return nil, eris.Wrap(err, "decode tree")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tree) validate() error {
	if len(t.FeatureNames) == 0 {
		return eris.New("tree declares no features")
	}
	if len(t.Nodes) == 0 {
		return eris.New("tree has no nodes")
	}
	classes := map[string]bool{}
	for _, c := range t.Classes {
		classes[c] = true
	}
	for i, n := range t.Nodes {
		if n.Class != "" {
			if len(classes) > 0 && !classes[n.Class] {
				return eris.Errorf("node %d: unknown class %q", i, n.Class)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= len(t.FeatureNames) {
			return eris.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		// children must point forward, which also rules out cycles
		for _, c := range []int{n.Left, n.Right} {
			if c <= i || c >= len(t.Nodes) {
				return eris.Errorf("node %d: invalid child %d", i, c)
			}
		}
	}
	return nil
}

// Features returns the feature order the tree was trained on.
func (t *Tree) Features() []string { return append([]string(nil), t.FeatureNames...) }

// Predict walks the tree once per feature vector.
func (t *Tree) Predict(ctx context.Context, features [][]float64) ([]string, error) {
	out := make([]string, len(features))
	for i, x := range features {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(x) != len(t.FeatureNames) {
			return nil, eris.Errorf("record %d: got %d features, want %d", i, len(x), len(t.FeatureNames))
		}
		out[i] = t.leaf(x)
	}
	return out, nil
}

func (t *Tree) leaf(x []float64) string {
	n := t.Nodes[0]
	for n.Class == "" {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Class
}
