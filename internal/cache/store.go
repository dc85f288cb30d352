package cache

import (
	"context"
)

// Asset is a cached response keyed by its request path.
type Asset struct {
	Key         string
	ContentType string
	Body        []byte
}

// SnapshotStore persists versioned asset snapshots. A version is written in full or not
// at all, and is removed as a whole.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, version string, assets []Asset) error
	Match(ctx context.Context, version, key string) (*Asset, bool, error)
	Versions(ctx context.Context) ([]string, error)
	DeleteVersion(ctx context.Context, version string) error
	ActiveVersion(ctx context.Context) (string, error)
	SetActiveVersion(ctx context.Context, version string) error
}
