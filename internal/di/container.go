// Package di provides dependency injection wiring for the novelhost host
// process, tying configuration, logging, the Extension Runtime (C3), the
// Storage Engine (C4), extension stores (C5), the Local Registry (C6),
// the Host Orchestrator (C7), and the optional HTTP facade together
// behind a single samber/do container.
package di

import (
	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/capability"
	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/di/providers"
	"github.com/inkbound/novelhost/internal/extruntime"
	"github.com/inkbound/novelhost/internal/httpbroker"
	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/orchestrator"
	"github.com/inkbound/novelhost/internal/storage"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer (C4)
	do.Provide(injector, providers.ProvideStorageEngine)

	// Registry (C6) and derived catalog projection
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideCatalog)

	// Extension runtime (C1/C2/C3)
	do.Provide(injector, providers.ProvideHTTPBroker)
	do.Provide(injector, providers.ProvideCapabilityTable)
	do.Provide(injector, providers.ProvideExtensionEngine)

	// Extension stores (C5) and orchestrator (C7)
	do.Provide(injector, providers.ProvideExtensionStores)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Workers
	do.Provide(injector, providers.ProvideLocalStoreWatcher)
	do.Provide(injector, providers.ProvideRegistryHealthJob)

	// HTTP facade and discovery
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideDiscoveryService)

	return injector
}

// Bootstrap initializes all components. This triggers lazy initialization
// of everything the host needs to run; a component that fails to
// initialize panics through do.MustInvoke, and the returned error is
// always nil.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)

	_ = do.MustInvoke[*storage.Engine](injector)

	_ = do.MustInvoke[*providers.RegistryHandle](injector)
	_ = do.MustInvoke[*providers.CatalogHandle](injector)

	_ = do.MustInvoke[*httpbroker.Broker](injector)
	_ = do.MustInvoke[*capability.Table](injector)
	_ = do.MustInvoke[*providers.ExtensionEngineHandle](injector)

	_ = do.MustInvoke[providers.ExtensionStores](injector)
	_ = do.MustInvoke[*orchestrator.Orchestrator](injector)

	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[*providers.LocalStoreWatcherJob](injector)
	_ = do.MustInvoke[*providers.RegistryHealthJob](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.DiscoveryServiceHandle](injector)

	// Backfill the search index from storage manifests if it's empty but
	// novels already exist on disk (e.g. after deleting search.bleve).
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
