// Package storeprovider implements the Store Provider & Cache (C5)
// abstraction: "where extension packages come from", behind a single
// sync(dir)/needs_sync(dir) capability with Local, Git, and GitHub
// (read-only HTTPS raw) variants, plus a LocallyCachedStore that wraps a
// Provider with sync-on-read semantics.
package storeprovider

import (
	"context"
	"time"
)

// Provider abstracts a source of extension package files.
type Provider interface {
	// Sync brings dir up to date with the provider's remote state.
	Sync(ctx context.Context, dir string) (*SyncResult, error)
	// NeedsSync reports whether dir is missing or stale enough to warrant
	// a Sync call before serving reads from it.
	NeedsSync(dir string) bool
}

// SyncResult reports the outcome of a Sync call.
type SyncResult struct {
	Updated          bool
	Changes          []string
	Warnings         []string
	CompletedAt      time.Time
	BytesTransferred int64
}

// HealthStatus reports whether a store is serving reads from healthy
// data or from a stale cache after a failed sync.
type HealthStatus struct {
	Healthy bool
	Message string
}
