package interfaces

import (
	"context"

	"findash/internal/store"
)

// SnapshotStore persists extracted series
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap store.Snapshot) error

	// LatestSnapshot returns the newest snapshot for a ticker, or nil if none exists
	LatestSnapshot(ctx context.Context, ticker string) (*store.Snapshot, error)
}
