package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "classifications.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func collection(t *testing.T, rows ...string) *dataset.Collection {
	t.Helper()
	csv := "Profil,Material,Depth,X,Y,Z,Ni (%),Fe (%),SiO2 (%),MgO (%),Note\n" + strings.Join(rows, "\n")
	raw, err := dataset.Read(strings.NewReader(csv), "in.csv", dataset.ReadOptions{})
	require.NoError(t, err)
	c, err := dataset.Validate(raw, dataset.RequiredColumns(dataset.DefaultAssayColumns))
	require.NoError(t, err)
	return c
}

func rowsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("A,Ore,%d,100.5,200,10,1.%d,15,40,20,r%d", i+1, i, i)
	}
	return out
}

func TestReplaceAllIsNotAdditive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, st.ReplaceAll(ctx, collection(t, rowsN(4)...)))
	require.NoError(t, st.ReplaceAll(ctx, collection(t, "B,Waste,15,101,201.5,9,0.1,8.4,55,30,")))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "B", snap.Text(0, dataset.ColProfil))
	assert.Equal(t, 201.5, snap.Number(0, dataset.ColY))
	assert.Equal(t, []string{"Profil", "Material", "Depth", "X", "Y", "Z", "Ni (%)", "Fe (%)", "SiO2 (%)", "MgO (%)", "Note"}, snap.ColumnNames())
	k, _ := snap.Kind("Ni (%)")
	assert.Equal(t, dataset.KindNumeric, k)
}

func TestReplaceAllKeepsColumnsOfEmptyDataset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.ReplaceAll(ctx, collection(t)))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Len(t, snap.ColumnNames(), 11)
}

func TestAppendLogGrowsMonotonically(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := collection(t, rowsN(5)...)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendLog(ctx, first.All(), t0, "run-1"))

	before, err := st.ReadLog(ctx)
	require.NoError(t, err)
	require.Len(t, before.Rows, 5)

	second := collection(t, rowsN(3)...)
	t1 := t0.Add(time.Hour)
	require.NoError(t, st.AppendLog(ctx, second.All(), t1, "run-2"))

	n, err := st.LogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	after, err := st.ReadLog(ctx)
	require.NoError(t, err)
	require.Len(t, after.Rows, 8)
	assert.Equal(t, before.Rows, after.Rows[:5])

	at := indexOf(after.Columns, ColCreatedAt)
	require.GreaterOrEqual(t, at, 0)
	for _, row := range after.Rows[5:] {
		assert.Equal(t, "2026-03-01 09:00:00", row[at])
	}

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Run{
		{ID: "run-1", CreatedAt: "2026-03-01 08:00:00", Records: 5},
		{ID: "run-2", CreatedAt: "2026-03-01 09:00:00", Records: 3},
	}, runs)
}

func TestAppendLogAddsNewColumns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, st.AppendLog(ctx, collection(t, rowsN(2)...).All(), ts, "run-1"))

	classified, err := collection(t, rowsN(1)...).All().WithColumn(dataset.ColOreClass, []string{"HG"})
	require.NoError(t, err)
	require.NoError(t, st.AppendLog(ctx, classified, ts.Add(time.Minute), "run-2"))

	log, err := st.ReadLog(ctx)
	require.NoError(t, err)
	oc := indexOf(log.Columns, dataset.ColOreClass)
	require.GreaterOrEqual(t, oc, 0)
	assert.Equal(t, "", log.Rows[0][oc])
	assert.Equal(t, "", log.Rows[1][oc])
	assert.Equal(t, "HG", log.Rows[2][oc])
}

func TestAppendLogMatchesColumnsIgnoringCase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	hole := func(name, value string) *dataset.View {
		raw := &dataset.RawTable{
			Columns: []string{"Profil", "Material", "Depth", name},
			Rows:    [][]string{{"A", "Ore", "5", value}},
		}
		c, err := dataset.Validate(raw, nil)
		require.NoError(t, err)
		return c.All()
	}
	require.NoError(t, st.AppendLog(ctx, hole("Hole", "DH-01"), ts, "run-1"))
	require.NoError(t, st.AppendLog(ctx, hole("HOLE", "DH-02"), ts.Add(time.Minute), "run-2"))

	log, err := st.ReadLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Profil", "Material", "Depth", "Hole", ColCreatedAt, ColRunID}, log.Columns)
	require.Len(t, log.Rows, 2)
	assert.Equal(t, "DH-01", log.Rows[0][3])
	assert.Equal(t, "DH-02", log.Rows[1][3])
}

func TestAppendLogEmptyView(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := collection(t, rowsN(2)...)
	require.NoError(t, st.AppendLog(ctx, dataset.NewView(c, nil), time.Now(), "run-1"))

	n, err := st.LogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLogReadsWithoutLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.LogCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	log, err := st.ReadLog(ctx)
	require.NoError(t, err)
	assert.Empty(t, log.Rows)
}

func TestClosedStoreReportsStoreError(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	err = st.ReplaceAll(context.Background(), collection(t, rowsN(1)...))
	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "replace", se.Op)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"Ni (%)"`, quote("Ni (%)"))
	assert.Equal(t, `"a""b"`, quote(`a"b`))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
