package providers

import (
	"github.com/samber/do/v2"

	"github.com/inkbound/novelhost/internal/config"
	"github.com/inkbound/novelhost/internal/storage"
)

// ProvideStorageEngine provides the content-addressed book storage engine
// (C4), rooted at the configured storage path.
func ProvideStorageEngine(i do.Injector) (*storage.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)

	engine, err := storage.New(cfg.Storage.StoragePath)
	if err != nil {
		return nil, err
	}

	return engine, nil
}
