package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbound/novelhost/internal/registry"
	"github.com/inkbound/novelhost/internal/storeprovider"
)

func writeStoreExtension(t *testing.T, storeDir, extensionID string, urlPatterns []string) {
	t.Helper()
	extDir := filepath.Join(storeDir, extensionID)
	require.NoError(t, os.MkdirAll(extDir, 0o755))

	binary := []byte("fake wasm bytes for " + extensionID)
	require.NoError(t, os.WriteFile(filepath.Join(extDir, "module.wasm"), binary, 0o644))
	sum := sha256.Sum256(binary)

	patterns := make([]registry.URLPattern, len(urlPatterns))
	for i, p := range urlPatterns {
		patterns[i] = registry.URLPattern{Pattern: p}
	}

	manifest := storeManifest{
		Manifest: registry.Manifest{
			ID:          extensionID,
			Version:     "1.0.0",
			URLPatterns: patterns,
			Checksum:    hex.EncodeToString(sum[:]),
			SizeBytes:   int64(len(binary)),
		},
		BinaryFile: "module.wasm",
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(extDir, "manifest.json"), data, 0o644))
}

func TestFindExtensionsForURL_MatchesDeclaredPattern(t *testing.T) {
	storeDir := t.TempDir()
	writeStoreExtension(t, storeDir, "novelpub", []string{"https://novelpub.test/"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storeprovider.NewLocallyCachedStore(storeprovider.NewLocal(), storeDir, log)

	o := &Orchestrator{stores: map[string]*storeprovider.LocallyCachedStore{"community": store}}
	matches, err := o.findExtensionsForURL(context.Background(), store, "https://novelpub.test/novel/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"novelpub"}, matches)
}

func TestResolveForURL_FallsBackToStoreScan(t *testing.T) {
	storeDir := t.TempDir()
	writeStoreExtension(t, storeDir, "novelpub", []string{"https://novelpub.test/"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storeprovider.NewLocallyCachedStore(storeprovider.NewLocal(), storeDir, log)

	reg, err := registry.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	o := New(reg, map[string]*storeprovider.LocallyCachedStore{"community": store}, nil, nil, nil)
	matches, err := o.ResolveForURL(context.Background(), "https://novelpub.test/novel/1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "community:novelpub", matches[0])
}

func TestInstall_ReadsPackageFromStoreAndRegisters(t *testing.T) {
	storeDir := t.TempDir()
	writeStoreExtension(t, storeDir, "novelpub", []string{"https://novelpub.test/"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storeprovider.NewLocallyCachedStore(storeprovider.NewLocal(), storeDir, log)

	reg, err := registry.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	o := New(reg, map[string]*storeprovider.LocallyCachedStore{"community": store}, nil, nil, nil)
	findings, err := o.Install(context.Background(), "community", "novelpub", registry.InstallOptions{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	installed := reg.ListInstalled()
	require.Len(t, installed, 1)
	assert.Equal(t, "novelpub", installed[0].ID)
}
