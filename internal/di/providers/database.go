package providers

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/catalog"
	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/registry"
	"github.com/inkbound/novelhost/internal/storage"
)

// ProvideSlogLogger provides access to the underlying slog.Logger for
// packages that need it directly rather than the wrapped Logger type.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

// RegistryHandle wraps registry.Registry with shutdown capability.
type RegistryHandle struct {
	*registry.Registry
}

// Shutdown implements do.Shutdownable.
func (h *RegistryHandle) Shutdown() error {
	return h.Close()
}

// ProvideRegistry provides the local extension registry (C6), gated by
// the default validation chain.
func ProvideRegistry(i do.Injector) (*RegistryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	reg, err := registry.New(cfg.Storage.RegistryPath, registry.DefaultChain())
	if err != nil {
		return nil, err
	}

	log.Info("Registry initialized", "path", cfg.Storage.RegistryPath)
	return &RegistryHandle{Registry: reg}, nil
}

// CatalogHandle wraps catalog.Catalog with shutdown capability.
type CatalogHandle struct {
	*catalog.Catalog
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	return h.Close()
}

// ProvideCatalog provides the SQLite catalog projection (derived from
// internal/storage's manifests), rebuilding it from the storage engine
// whenever it's found empty so a fresh or deleted catalog self-heals on
// next boot.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	engine := do.MustInvoke[*storage.Engine](i)

	dbPath := filepath.Join(cfg.Storage.RegistryPath, "catalog.db")
	cat, err := catalog.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	stats, err := cat.Stats(ctx)
	if err != nil {
		log.Warn("Failed to read catalog stats, attempting rebuild", "error", err)
	}
	if err != nil || stats.TotalNovels == 0 {
		if err := cat.Rebuild(ctx, engine); err != nil {
			log.Warn("Catalog rebuild failed", "error", err)
		} else {
			log.Info("Catalog rebuilt from storage manifests")
		}
	}

	log.Info("Catalog initialized", "path", dbPath)
	return &CatalogHandle{Catalog: cat}, nil
}
