package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.SetRecords(StageIngested, 10)
	r.SetRecords(StageFiltered, 4)
	r.Warning("model_unavailable")
	r.FinishRun(1500*time.Millisecond, nil)
	r.FinishRun(time.Second, errors.New("boom"))

	assert.Equal(t, 10.0, testutil.ToFloat64(r.records.WithLabelValues(StageIngested)))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.records.WithLabelValues(StageFiltered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.warningsTotal.WithLabelValues("model_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues(StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.duration))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetRecords(StageClassified, 3)
	r.FinishRun(time.Second, nil)

	path := filepath.Join(t.TempDir(), "collector", "gradectl.prom")
	require.NoError(t, r.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `gradectl_pipeline_records{stage="classified"} 3`)
	assert.Contains(t, string(b), `gradectl_pipeline_runs_total{status="success"} 1`)
	assert.Contains(t, string(b), "gradectl_pipeline_duration_seconds 1")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.SetRecords(StageIngested, 1)
	r.Warning("x")
	r.FinishRun(time.Second, nil)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}
