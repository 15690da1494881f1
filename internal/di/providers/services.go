package providers

import (
	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/httpbroker"
	"github.com/inkbound/novelhost/internal/logger"
	"github.com/inkbound/novelhost/internal/orchestrator"
	"github.com/inkbound/novelhost/internal/storage"
	"github.com/inkbound/novelhost/internal/storeprovider"
)

// ExtensionStores groups the named extension stores (C5) an orchestrator
// resolves against. A "local" filesystem store is always present;
// additional git/GitHub-raw stores would be added here as configuration
// grows to name them.
type ExtensionStores map[string]*storeprovider.LocallyCachedStore

// ProvideExtensionStores provides the named C5 extension stores.
func ProvideExtensionStores(i do.Injector) (ExtensionStores, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	local := storeprovider.NewLocallyCachedStore(storeprovider.NewLocal(), cfg.Storage.StoresPath, log.Logger)

	return ExtensionStores{"local": local}, nil
}

// ProvideOrchestrator provides the C7 Host Orchestrator, tying the
// registry, the named extension stores, the extension runtime, and the
// storage engine together.
func ProvideOrchestrator(i do.Injector) (*orchestrator.Orchestrator, error) {
	regHandle := do.MustInvoke[*RegistryHandle](i)
	stores := do.MustInvoke[ExtensionStores](i)
	engineHandle := do.MustInvoke[*ExtensionEngineHandle](i)
	storageEngine := do.MustInvoke[*storage.Engine](i)
	broker := do.MustInvoke[*httpbroker.Broker](i)

	return orchestrator.New(
		regHandle.Registry,
		map[string]*storeprovider.LocallyCachedStore(stores),
		engineHandle.Engine,
		storageEngine,
		broker,
	), nil
}
