// Package store persists the latest dataset snapshot and the append-only
// classification log.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// Table names inside the database file.
const (
	SnapshotTable = "classified_data"
	LogTable      = "classified_data_log"
)

// Extra columns stamped on every log row.
const (
	ColCreatedAt = dataset.ColCreatedAt
	ColRunID     = "run_id"
)

// TimestampLayout is the textual form of created_at.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrNoSnapshot is returned by Snapshot before the first ReplaceAll.
var ErrNoSnapshot = errors.New("store: no snapshot stored yet")

// Store is the persistence surface used by the pipeline.
type Store interface {
	ReplaceAll(ctx context.Context, c *dataset.Collection) error
	AppendLog(ctx context.Context, v *dataset.View, ts time.Time, runID string) error
}

// StoreError wraps any read or write failure of the underlying database.
// Such failures are fatal for a run and never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Run summarises one appended run of the log.
type Run struct {
	ID        string
	CreatedAt string
	Records   int
}

// LogRows holds the log content in insertion order.
type LogRows struct {
	Columns []string
	Rows    [][]string
}
