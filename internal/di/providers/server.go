package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/api"
	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/discovery"
	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/storage"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the optional read-only HTTP facade (C7 over
// internal/api) and starts it listening in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	registryHandle := do.MustInvoke[*RegistryHandle](i)
	storageEngine := do.MustInvoke[*storage.Engine](i)

	handler := api.NewServer(catalogHandle.Catalog, searchHandle.SearchIndex, registryHandle.Registry, storageEngine, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP facade starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP facade error", "error", err)
		}
	}()

	log.Info("HTTP facade running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}

// DiscoveryServiceHandle wraps discovery.Service with Shutdownable.
type DiscoveryServiceHandle struct {
	*discovery.Service
	started bool
}

// Shutdown implements do.Shutdownable.
func (h *DiscoveryServiceHandle) Shutdown() error {
	if h.started && h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideDiscoveryService provides the mDNS advertisement of the HTTP
// facade, if enabled in configuration.
func ProvideDiscoveryService(i do.Injector) (*DiscoveryServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &DiscoveryServiceHandle{Service: nil, started: false}, nil
	}

	svc := discovery.New(log.Logger)

	port := 8080
	if _, err := fmt.Sscanf(cfg.Server.Port, "%d", &port); err != nil {
		log.Warn("Failed to parse server port for mDNS, using default", "port", cfg.Server.Port)
	}

	instance := discovery.Instance{ID: "novelhost", Name: "novelhost"}
	if err := svc.Start(instance, port); err != nil {
		log.Warn("mDNS advertisement unavailable", "error", err)
		// Non-fatal: the facade still works without it (e.g. Docker, cloud).
		return &DiscoveryServiceHandle{Service: svc, started: false}, nil
	}

	return &DiscoveryServiceHandle{Service: svc, started: true}, nil
}
