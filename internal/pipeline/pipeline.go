// Package pipeline runs one grade-control pass over an uploaded dataset:
// validate, persist the snapshot, filter, classify, aggregate, export and log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/gradectl/internal/analysis"
	"github.com/KaramelBytes/gradectl/internal/classifier"
	"github.com/KaramelBytes/gradectl/internal/dataset"
	"github.com/KaramelBytes/gradectl/internal/export"
	"github.com/KaramelBytes/gradectl/internal/filter"
	"github.com/KaramelBytes/gradectl/internal/metrics"
	"github.com/KaramelBytes/gradectl/internal/store"
	"github.com/KaramelBytes/gradectl/internal/utils"
)

// Warning kinds reported alongside a successful run.
const (
	WarnEmptyResult      = "empty_result"
	WarnModelUnavailable = "model_unavailable"
	WarnFeatureMismatch  = "feature_mismatch"
	WarnClassifierFailed = "classifier_failed"
)

// Warning is a non-fatal condition met during a run.
type Warning struct {
	Kind    string
	Message string
}

func (w Warning) String() string { return w.Kind + ": " + w.Message }

// Deps are the collaborators of a run. Classifier and Metrics may be nil.
type Deps struct {
	Store      store.Store
	Classifier *classifier.Adapter
	Metrics    *metrics.Recorder
	Now        func() time.Time
	NewID      func() string
}

// Input describes one upload.
type Input struct {
	Table *dataset.RawTable
	// Required defaults to the base columns plus the classifier's feature columns.
	Required []string
	// GroupColumn defaults to Material.
	GroupColumn string
	// Metrics defaults to the feature columns.
	Metrics []string
	// OutputDir, when set, receives the CSV and XLSX exports.
	OutputDir string
}

// Result is everything a successful run produced.
type Result struct {
	RunID     string
	Timestamp time.Time
	Ingested  int
	View      *dataset.View
	Stats     *analysis.Stats
	CSV       []byte
	XLSX      []byte
	Files     []string
	Warnings  []Warning
}

// Classified reports whether the view carries predicted labels.
func (r *Result) Classified() bool { return r.View != nil && r.View.IsDerived(dataset.ColOreClass) }

// Pipeline executes runs against a fixed set of collaborators.
type Pipeline struct {
	deps Deps
}

func New(d Deps) *Pipeline {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.New().String() }
	}
	return &Pipeline{deps: d}
}

// Run executes one pass. sel derives the filter criteria from the validated
// collection; a nil sel means no restriction. Fatal errors (schema, bad
// aggregation columns, store failures) abort before the step that would
// mutate state.
func (p *Pipeline) Run(ctx context.Context, in Input, sel filter.Selector) (res *Result, err error) {
	start := p.deps.Now()
	defer func() {
		p.deps.Metrics.FinishRun(p.deps.Now().Sub(start), err)
	}()

	features := dataset.DefaultAssayColumns
	if p.deps.Classifier != nil && len(p.deps.Classifier.Features()) > 0 {
		features = p.deps.Classifier.Features()
	}
	required := in.Required
	if len(required) == 0 {
		required = dataset.RequiredColumns(features)
	}
	group := in.GroupColumn
	if group == "" {
		group = dataset.ColMaterial
	}
	metricCols := in.Metrics
	if len(metricCols) == 0 {
		metricCols = features
	}
	if sel == nil {
		sel = filter.FullDomain
	}

	c, err := dataset.Validate(in.Table, required)
	if err != nil {
		return nil, err
	}
	if err := analysis.CheckColumns(c, group, metricCols); err != nil {
		return nil, err
	}
	p.deps.Metrics.SetRecords(metrics.StageIngested, c.Len())
	zap.L().Info("dataset validated", zap.String("name", c.Name), zap.Int("records", c.Len()))

	if err := p.deps.Store.ReplaceAll(ctx, c); err != nil {
		return nil, err
	}
	zap.L().Info("snapshot replaced", zap.Int("records", c.Len()))

	res = &Result{
		RunID:     p.deps.NewID(),
		Timestamp: p.deps.Now(),
		Ingested:  c.Len(),
	}

	crit := sel(c)
	view := filter.Apply(c, crit)
	p.deps.Metrics.SetRecords(metrics.StageFiltered, view.Len())
	zap.L().Info("records filtered", zap.Int("kept", view.Len()), zap.Int("total", c.Len()))
	if view.Len() == 0 {
		res.warn(p.deps.Metrics, WarnEmptyResult, "filter criteria matched no records")
	}

	view, err = p.classify(ctx, view, res)
	if err != nil {
		return nil, err
	}
	res.View = view

	res.Stats, err = analysis.Summarize(view, group, metricCols)
	if err != nil {
		return nil, err
	}
	zap.L().Info("statistics computed", zap.Int("groups", len(res.Stats.Groups)))

	if res.CSV, err = export.Text(view); err != nil {
		return nil, err
	}
	if res.XLSX, err = export.Spreadsheet(view, res.Stats); err != nil {
		return nil, err
	}
	if in.OutputDir != "" {
		outputs := []struct {
			name string
			data []byte
		}{{export.CSVFileName, res.CSV}, {export.XLSXFileName, res.XLSX}}
		for _, o := range outputs {
			path := filepath.Join(in.OutputDir, o.name)
			if err := utils.SafeWriteFile(path, o.data); err != nil {
				return nil, eris.Wrapf(err, "pipeline: write %s", path)
			}
			res.Files = append(res.Files, path)
		}
	}

	if err := p.deps.Store.AppendLog(ctx, view, res.Timestamp, res.RunID); err != nil {
		return nil, err
	}
	zap.L().Info("classification log appended",
		zap.String("run_id", res.RunID),
		zap.Int("records", view.Len()),
	)
	return res, nil
}

// classify attaches predictions when a model is usable. Every classifier
// problem except cancellation degrades to a warning.
func (p *Pipeline) classify(ctx context.Context, v *dataset.View, res *Result) (*dataset.View, error) {
	a := p.deps.Classifier
	if !a.Available() {
		res.warn(p.deps.Metrics, WarnModelUnavailable, "no trained model found; classification skipped")
		return v, nil
	}
	out, err := a.Classify(ctx, v)
	if err == nil {
		p.deps.Metrics.SetRecords(metrics.StageClassified, out.Len())
		zap.L().Info("records classified", zap.Int("records", out.Len()))
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var fm *classifier.FeatureMismatchError
	switch {
	case errors.Is(err, classifier.ErrModelUnavailable):
		res.warn(p.deps.Metrics, WarnModelUnavailable, "no trained model found; classification skipped")
	case errors.As(err, &fm):
		res.warn(p.deps.Metrics, WarnFeatureMismatch, fm.Error())
	default:
		res.warn(p.deps.Metrics, WarnClassifierFailed, fmt.Sprintf("classification skipped: %v", err))
	}
	return v, nil
}

func (r *Result) warn(m *metrics.Recorder, kind, msg string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Message: msg})
	m.Warning(kind)
	zap.L().Warn(msg, zap.String("kind", kind))
}
