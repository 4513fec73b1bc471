// Package classifier applies a pre-trained ore-grade model to sampling records.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// ErrModelUnavailable means no trained model is present. It is an expected
// outcome: callers skip classification instead of failing.
var ErrModelUnavailable = errors.New("classifier: model unavailable")

// FeatureMismatchError means the model is present but the records lack some
// of the required feature columns, or the model expects different ones.
type FeatureMismatchError struct {
	Missing  []string
	Expected []string
}

func (e *FeatureMismatchError) Error() string {
	if len(e.Missing) > 0 {
		return "classifier: missing feature columns: " + strings.Join(e.Missing, ", ")
	}
	return "classifier: model expects features " + strings.Join(e.Expected, ", ")
}

// Model is an externally trained classifier. Predict receives one feature
// vector per record, ordered like the feature contract, and returns one label
// per vector.
type Model interface {
	Predict(ctx context.Context, features [][]float64) ([]string, error)
}

// FeatureDeclarer is implemented by models that declare their feature order.
type FeatureDeclarer interface {
	Features() []string
}

// Adapter binds a model to a fixed, ordered feature contract.
type Adapter struct {
	model    Model
	features []string
}

// NewAdapter wraps m; a nil model makes every prediction report ErrModelUnavailable.
func NewAdapter(m Model, features []string) *Adapter {
	return &Adapter{model: m, features: append([]string(nil), features...)}
}

// Available reports whether a model is loaded.
func (a *Adapter) Available() bool { return a != nil && a.model != nil }

// Features returns the feature contract.
func (a *Adapter) Features() []string { return append([]string(nil), a.features...) }

// Predict returns one label per view row, in view order.
func (a *Adapter) Predict(ctx context.Context, v *dataset.View) ([]string, error) {
	if !a.Available() {
		return nil, ErrModelUnavailable
	}
	var missing []string
	for _, col := range a.features {
		if k, ok := v.Kind(col); !ok || k != dataset.KindNumeric {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &FeatureMismatchError{Missing: missing}
	}
	if fd, ok := a.model.(FeatureDeclarer); ok {
		if want := fd.Features(); len(want) > 0 && !equal(want, a.features) {
			return nil, &FeatureMismatchError{Expected: want}
		}
	}
	if v.Len() == 0 {
		return []string{}, nil
	}

	rows := make([][]float64, v.Len())
	for i := range rows {
		vec := make([]float64, len(a.features))
		for j, col := range a.features {
			vec[j] = v.Number(i, col)
		}
		rows[i] = vec
	}
	labels, err := a.model.Predict(ctx, rows)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: predict")
	}
	if len(labels) != len(rows) {
		return nil, eris.Errorf("classifier: model returned %d labels for %d records", len(labels), len(rows))
	}
	return labels, nil
}

// Classify returns v with the predicted labels attached as dataset.ColOreClass.
// A stale label column carried by the upload is overwritten.
func (a *Adapter) Classify(ctx context.Context, v *dataset.View) (*dataset.View, error) {
	labels, err := a.Predict(ctx, v)
	if err != nil {
		return nil, err
	}
	return v.ReplaceColumn(dataset.ColOreClass, labels)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Provider identifiers for model backends.
const (
	ProviderArtifact = "artifact"
	ProviderHTTP     = "http"
)

// BackendFactory builds a Model from the generic config below. It returns
// ErrModelUnavailable when the backend has nothing to load.
type BackendFactory func(BackendConfig) (Model, error)

// BackendConfig carries common knobs used by backends.
type BackendConfig struct {
	Features []string

	// Artifact
	Path string

	// HTTP
	Host        string
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var registry = map[string]BackendFactory{}

// RegisterBackend registers a provider name with its factory.
func RegisterBackend(name string, f BackendFactory) { registry[name] = f }

// Open builds the model for provider. A nil model with ErrModelUnavailable
// means "proceed without classification".
func Open(provider string, cfg BackendConfig) (Model, error) {
	f, ok := registry[provider]
	if !ok {
		return nil, fmt.Errorf("classifier: unknown model provider %q", provider)
	}
	return f(cfg)
}

func init() {
	RegisterBackend(ProviderArtifact, func(c BackendConfig) (Model, error) {
		t, err := LoadArtifact(c.Path)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
	RegisterBackend(ProviderHTTP, func(c BackendConfig) (Model, error) {
		if c.Host == "" {
			return nil, ErrModelUnavailable
		}
		return NewHTTPModel(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay).WithFeatures(c.Features), nil
	})
}
