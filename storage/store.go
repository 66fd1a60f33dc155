package storage

import (
	"context"

	"kpiwatch/collector"
)

// Record is re-exported here so callers do not need to import the
// collector package just to call Append.
type Record = collector.Record

// Appender persists one record per run. It never updates or deletes rows.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// Store is an Appender that can also read its rows back.
type Store interface {
	Appender

	// List returns at most limit records in insertion order, the most
	// recent ones when limit cuts the history. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)

	// Close releases any resources (e.g. DB connections).
	Close() error
}

// Multi appends to every appender in order and stops at the first failure.
type Multi []Appender

func (m Multi) Append(ctx context.Context, rec Record) error {
	for _, a := range m {
		if err := a.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
