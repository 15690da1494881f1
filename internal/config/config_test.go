package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			StoragePath:  "/some/path/library",
			RegistryPath: "/some/path/registry",
		},
		Broker: BrokerConfig{Backend: "direct"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
	}
	for _, tc := range tests {
		cfg := validConfig()
		cfg.App.Environment = tc.env
		err := cfg.Validate()
		if tc.valid {
			assert.NoError(t, err, tc.env)
		} else {
			assert.Error(t, err, tc.env)
		}
	}
}

func TestValidate_RequiresStoragePaths(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.StoragePath = ""
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.RegistryPath = ""
	require.Error(t, cfg.Validate())
}

func TestValidate_BrokerBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.Backend = "rendered"
	assert.NoError(t, cfg.Validate())

	cfg.Broker.Backend = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", got)

	got, err = expandPath("/already/abs", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/already/abs", got)
}
