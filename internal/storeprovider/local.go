package storeprovider

import (
	"context"
	"os"
	"time"
)

// LocalProvider serves files already present on disk; there's nothing to
// fetch, so Sync is a no-op and NeedsSync is only true if dir is missing
// outright.
type LocalProvider struct{}

// NewLocal builds a LocalProvider.
func NewLocal() *LocalProvider { return &LocalProvider{} }

// Sync implements Provider.
func (p *LocalProvider) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	return &SyncResult{Updated: false, CompletedAt: time.Now()}, nil
}

// NeedsSync implements Provider.
func (p *LocalProvider) NeedsSync(dir string) bool {
	info, err := os.Stat(dir)
	return err != nil || !info.IsDir()
}
