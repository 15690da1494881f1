package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackage(id string, urlPatterns ...string) Package {
	return samplePackageWithPriority(id, 0, urlPatterns...)
}

func samplePackageWithPriority(id string, priority int, urlPatterns ...string) Package {
	binary := []byte("fake wasm bytes for " + id)
	sum := sha256.Sum256(binary)
	patterns := make([]URLPattern, len(urlPatterns))
	for i, p := range urlPatterns {
		patterns[i] = URLPattern{Pattern: p, Priority: priority}
	}
	return Package{
		Manifest: Manifest{
			ID:          id,
			Version:     "1.0.0",
			Name:        id,
			URLPatterns: patterns,
			Checksum:    hex.EncodeToString(sum[:]),
			SizeBytes:   int64(len(binary)),
		},
		Binary: binary,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestInstall_ThenListAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	findings, err := r.Install(ctx, "store-a", samplePackage("ext-1", "https://example.test/"), InstallOptions{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	installed := r.ListInstalled()
	require.Len(t, installed, 1)
	assert.Equal(t, "ext-1", installed[0].ID)

	got, err := r.GetInstalled("ext-1")
	require.NoError(t, err)
	assert.Equal(t, "store-a", got.SourceStore)
}

func TestInstall_RefusesDuplicateWithoutForce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Install(ctx, "store-a", samplePackage("ext-1", "https://example.test/"), InstallOptions{})
	require.NoError(t, err)

	_, err = r.Install(ctx, "store-a", samplePackage("ext-1", "https://example.test/"), InstallOptions{})
	require.Error(t, err)

	_, err = r.Install(ctx, "store-a", samplePackage("ext-1", "https://example.test/"), InstallOptions{Force: true})
	require.NoError(t, err)
}

func TestInstall_RefusesBadChecksum(t *testing.T) {
	r := newTestRegistry(t)
	pkg := samplePackage("ext-bad", "https://example.test/")
	pkg.Manifest.Checksum = "deadbeef"

	findings, err := r.Install(context.Background(), "store-a", pkg, InstallOptions{})
	require.Error(t, err)
	require.NotEmpty(t, findings)
	assert.True(t, HasErrors(findings))
}

func TestUninstall_RemovesRegistrationAndRoutes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Install(ctx, "store-a", samplePackage("ext-1", "https://example.test/"), InstallOptions{})
	require.NoError(t, err)

	require.NoError(t, r.Uninstall(ctx, "ext-1"))
	assert.Empty(t, r.ListInstalled())
	assert.Empty(t, r.FindByURL("https://example.test/novel/1"))
}

func TestFindByURL_PrefersHigherPriority(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Install(ctx, "store-a", samplePackageWithPriority("generic", 0, "https://example.test/"), InstallOptions{})
	require.NoError(t, err)
	_, err = r.Install(ctx, "store-a", samplePackageWithPriority("specific", 10, "https://example.test/novel/"), InstallOptions{})
	require.NoError(t, err)

	ids := r.FindByURL("https://example.test/novel/123")
	require.Len(t, ids, 2)
	assert.Equal(t, "specific", ids[0], "higher declared priority must be preferred")
	assert.Equal(t, "generic", ids[1])
}

func TestFindByURL_EqualPriorityPrefersEarlierInsertion(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Install(ctx, "store-a", samplePackage("first", "https://example.test/"), InstallOptions{})
	require.NoError(t, err)
	_, err = r.Install(ctx, "store-a", samplePackage("second", "https://example.test/"), InstallOptions{})
	require.NoError(t, err)

	ids := r.FindByURL("https://example.test/novel/123")
	require.Len(t, ids, 2)
	assert.Equal(t, "first", ids[0], "equal priority breaks ties by insertion order")
}
