// Package eventstore records the history of builds as an append-only event log
// in SQLite and projects it into build summaries.
package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves build events.
type Store interface {
	// Append adds an event to the log.
	Append(ctx context.Context, event Event) error

	// GetByBuildID returns every event of one build in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange returns events whose timestamp lies in [start, end], in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}
