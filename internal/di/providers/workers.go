package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/watcher"
)

// LocalStoreWatcherJob watches the local extension store's directory for
// a developer editing extensions in place, logging each settled change
// so a restart (or future hot-reload) can pick it up.
type LocalStoreWatcherJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *LocalStoreWatcherJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideLocalStoreWatcher watches the "local" extension store directory
// for external edits.
func ProvideLocalStoreWatcher(i do.Injector) (*LocalStoreWatcherJob, error) {
	stores := do.MustInvoke[ExtensionStores](i)
	log := do.MustInvoke[*logger.Logger](i)

	local, ok := stores["local"]
	if !ok {
		_, cancel := context.WithCancel(context.Background())
		cancel()
		return &LocalStoreWatcherJob{cancel: cancel}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := local.WatchForExternalEdits(ctx, func(event watcher.Event) {
			log.Info("local extension store changed", "path", event.Path, "type", event.Type)
		}); err != nil && ctx.Err() == nil {
			log.Warn("local extension store watch stopped", "error", err)
		}
	}()

	return &LocalStoreWatcherJob{cancel: cancel}, nil
}

// RegistryHealthJob periodically logs the health of every configured
// extension store, surfacing sync failures that would otherwise only show
// up the next time something tries to resolve or install from that store.
type RegistryHealthJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *RegistryHealthJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideRegistryHealthJob provides the periodic store-health logger.
func ProvideRegistryHealthJob(i do.Injector) (*RegistryHealthJob, error) {
	stores := do.MustInvoke[ExtensionStores](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		check := func() {
			for name, store := range stores {
				if h := store.Health(); !h.Healthy {
					log.Warn("extension store unhealthy", "store", name, "message", h.Message)
				}
			}
		}

		check()
		for {
			select {
			case <-ticker.C:
				check()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("store health job started")

	return &RegistryHealthJob{cancel: cancel}, nil
}
