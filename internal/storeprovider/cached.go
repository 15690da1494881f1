package storeprovider

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/inkbound/novelhost/internal/watcher"
)

// LocallyCachedStore wraps a Provider with a local directory: every read
// first calls syncIfNeeded (logging any sync warnings), then delegates
// to the local directory contents. A failed sync degrades the store to
// Unhealthy rather than blocking reads of whatever was last cached.
type LocallyCachedStore struct {
	provider Provider
	dir      string
	log      *slog.Logger

	mu     sync.Mutex
	health HealthStatus
}

// NewLocallyCachedStore builds a cached store backed by provider, synced
// into dir.
func NewLocallyCachedStore(provider Provider, dir string, log *slog.Logger) *LocallyCachedStore {
	return &LocallyCachedStore{
		provider: provider,
		dir:      dir,
		log:      log,
		health:   HealthStatus{Healthy: true},
	}
}

// Dir returns the local directory reads are served from.
func (s *LocallyCachedStore) Dir() string { return s.dir }

// Health reports the store's last known sync health.
func (s *LocallyCachedStore) Health() HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// syncIfNeeded calls the provider's Sync if NeedsSync reports staleness,
// logging warnings but never failing the caller outright — a stale
// cache is still better than no read at all.
func (s *LocallyCachedStore) syncIfNeeded(ctx context.Context) {
	if !s.provider.NeedsSync(s.dir) {
		return
	}
	result, err := s.provider.Sync(ctx, s.dir)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.health = HealthStatus{Healthy: false, Message: err.Error()}
		s.log.Warn("extension store sync failed", "dir", s.dir, "error", err)
		return
	}
	s.health = HealthStatus{Healthy: true}
	for _, w := range result.Warnings {
		s.log.Warn("extension store sync warning", "dir", s.dir, "warning", w)
	}
}

// ReadFile syncs the store if needed, then reads path relative to dir.
func (s *LocallyCachedStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	s.syncIfNeeded(ctx)
	return os.ReadFile(filepath.Join(s.dir, path))
}

// WatchForExternalEdits starts watching dir for changes made outside of
// Sync (a developer editing a local store directly, say) and calls
// onChange whenever a file settles after being added or modified. Only
// meaningful for stores backed by LocalProvider — a Git- or GitHub-backed
// cache's directory is only ever touched by Sync itself.
func (s *LocallyCachedStore) WatchForExternalEdits(ctx context.Context, onChange func(event watcher.Event)) error {
	w, err := watcher.New(s.log, watcher.Options{})
	if err != nil {
		return err
	}
	if err := w.Watch(s.dir); err != nil {
		return err
	}

	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				onChange(ev)
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				s.log.Warn("extension store watch error", "dir", s.dir, "error", err)
			}
		}
	}()

	return w.Start(ctx)
}

// ListFiles syncs the store if needed, then returns every regular file
// path relative to dir.
func (s *LocallyCachedStore) ListFiles(ctx context.Context) ([]string, error) {
	s.syncIfNeeded(ctx)

	var files []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
