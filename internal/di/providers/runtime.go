package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/capability"
	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/extruntime"
	"github.com/inkbound/novelhost/internal/httpbroker"
	"github.com/inkbound/novelhost/internal/logger"
)

// ProvideHTTPBroker provides the C1 HTTP broker, selecting the Direct or
// Rendered backend per the configured Broker.Backend.
func ProvideHTTPBroker(i do.Injector) (*httpbroker.Broker, error) {
	cfg := do.MustInvoke[*config.Config](i)

	var backend httpbroker.Backend
	switch cfg.Broker.Backend {
	case "rendered":
		backend = httpbroker.NewRendered()
	default:
		direct, err := httpbroker.NewDirect(cfg.Broker.RequestsPerSecond)
		if err != nil {
			return nil, err
		}
		backend = direct
	}

	return httpbroker.New(backend), nil
}

// ProvideCapabilityTable provides the C2 Host Capability Table, linking
// the HTTP broker in as the host's outbound-request capability.
func ProvideCapabilityTable(i do.Injector) (*capability.Table, error) {
	broker := do.MustInvoke[*httpbroker.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return capability.New(broker, log.Logger), nil
}

// ExtensionEngineHandle wraps extruntime.Engine with shutdown capability.
type ExtensionEngineHandle struct {
	*extruntime.Engine
}

// Shutdown implements do.Shutdownable.
func (h *ExtensionEngineHandle) Shutdown() error {
	return h.Close(context.Background())
}

// ProvideExtensionEngine provides the C3 shared wazero-backed extension
// runtime, linked against the Host Capability Table.
func ProvideExtensionEngine(i do.Injector) (*ExtensionEngineHandle, error) {
	caps := do.MustInvoke[*capability.Table](i)

	engine, err := extruntime.NewEngine(context.Background(), caps)
	if err != nil {
		return nil, err
	}

	return &ExtensionEngineHandle{Engine: engine}, nil
}
