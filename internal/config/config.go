// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files, following
// the XDG base-directory conventions named in spec §6.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const vendorDir = "novelhost"

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Broker  BrokerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds the filesystem roots for the storage engine (C4)
// and the local registry (C6).
type StorageConfig struct {
	// StoragePath is the book storage root (<XDG_DATA_HOME>/novelhost/library
	// by default). Config key: storage.path.
	StoragePath string
	// RegistryPath is the installed-extension registry root
	// (<XDG_DATA_HOME>/novelhost/registry by default). Config key:
	// registry.path.
	RegistryPath string
	// StoresPath is the local filesystem extension store's root
	// (<XDG_DATA_HOME>/novelhost/stores/local by default), synced into by
	// the "local" storeprovider.LocallyCachedStore every orchestrator
	// build wires in alongside any configured git/GitHub stores.
	StoresPath string
}

// ServerConfig holds the optional local HTTP facade configuration.
type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	AdvertiseMDNS bool
}

// BrokerConfig holds HTTP broker (C1) defaults.
type BrokerConfig struct {
	// Backend selects "direct" or "rendered" (headless browser).
	Backend string
	// RequestsPerSecond bounds the direct backend's per-host rate limiter.
	RequestsPerSecond float64
	// DefaultTimeout is parsed from BROKER_TIMEOUT but is not passed to the
	// HTTP broker, whose backends apply their own fixed 30s default to a
	// Request that carries no explicit timeout.
	DefaultTimeout time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	storagePath := flag.String("storage-path", "", "Book storage root")
	registryPath := flag.String("registry-path", "", "Extension registry root")
	storesPath := flag.String("stores-path", "", "Local extension store root")

	serverPort := flag.String("port", "", "HTTP facade port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise the facade via mDNS (default: false)")

	brokerBackend := flag.String("broker-backend", "", "HTTP broker backend: direct or rendered (default: direct)")
	brokerRPS := flag.String("broker-rps", "", "Per-host requests/sec limit for the direct backend (default: 2)")
	brokerTimeout := flag.String("broker-timeout", "", "Default per-request timeout (default: 30s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			StoragePath:  getConfigValue(*storagePath, "STORAGE_PATH", ""),
			RegistryPath: getConfigValue(*registryPath, "REGISTRY_PATH", ""),
			StoresPath:   getConfigValue(*storesPath, "STORES_PATH", ""),
		},
		Server: ServerConfig{
			Port:          getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", false),
		},
		Broker: BrokerConfig{
			Backend:           getConfigValue(*brokerBackend, "BROKER_BACKEND", "direct"),
			RequestsPerSecond: getFloatConfigValue(*brokerRPS, "BROKER_RPS", 2.0),
		},
	}

	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	d, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = d

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	if d, err = time.ParseDuration(writeTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = d

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	if d, err = time.ParseDuration(idleTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = d

	brokerTimeoutStr := getConfigValue(*brokerTimeout, "BROKER_TIMEOUT", "30s")
	if d, err = time.ParseDuration(brokerTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid broker timeout %q: %w", brokerTimeoutStr, err)
	}
	cfg.Broker.DefaultTimeout = d

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.StoragePath == "" {
		return errors.New("storage path cannot be empty after expansion")
	}
	if c.Storage.RegistryPath == "" {
		return errors.New("registry path cannot be empty after expansion")
	}

	validBackends := map[string]bool{"direct": true, "rendered": true}
	if !validBackends[c.Broker.Backend] {
		return fmt.Errorf("invalid broker backend: %s (must be direct or rendered)", c.Broker.Backend)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute. If path is empty,
// defaultPath is used instead.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePaths resolves StoragePath and RegistryPath against the XDG
// data-home default (<XDG_DATA_HOME>/novelhost/library,
// <XDG_DATA_HOME>/novelhost/registry) when unset.
func (c *Config) expandStoragePaths() error {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	base := filepath.Join(dataHome, vendorDir)

	expanded, err := expandPath(c.Storage.StoragePath, filepath.Join(base, "library"))
	if err != nil {
		return err
	}
	c.Storage.StoragePath = expanded

	expanded, err = expandPath(c.Storage.RegistryPath, filepath.Join(base, "registry"))
	if err != nil {
		return err
	}
	c.Storage.RegistryPath = expanded

	expanded, err = expandPath(c.Storage.StoresPath, filepath.Join(base, "stores", "local"))
	if err != nil {
		return err
	}
	c.Storage.StoresPath = expanded
	return nil
}

// ConfigDir returns <XDG_CONFIG_HOME>/novelhost, creating it if needed.
func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	dir := filepath.Join(configHome, vendorDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
