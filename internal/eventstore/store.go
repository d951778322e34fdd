package eventstore

import (
	"context"
	"time"
)

// Store is the append-only log behind build history. SQLiteStore is the
// only implementation; tests open it on ":memory:".
type Store interface {
	// Append records one event for buildID. The store stamps the time.
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error

	// GetByBuildID returns the events of one build in the order they were
	// appended.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange returns events stamped between start and end, inclusive,
	// in append order. The history projection replays from it.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}

// AppendEvent stores e, ignoring its ID and timestamp.
func AppendEvent(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.BuildID(), e.Type(), e.Payload(), e.Metadata())
}
