package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestSchemaRule_FlagsMissingFields(t *testing.T) {
	findings := ManifestSchemaRule{}.Check(Package{Manifest: Manifest{}})
	assert.True(t, HasErrors(findings))
}

func TestManifestSchemaRule_FlagsBadURLPattern(t *testing.T) {
	findings := ManifestSchemaRule{}.Check(Package{Manifest: Manifest{
		ID: "ext", Version: "1.0.0", URLPatterns: []URLPattern{{Pattern: "not-a-url"}},
	}})
	assert.True(t, HasErrors(findings))
}

func TestChecksumRule_PassesOnMatch(t *testing.T) {
	binary := []byte("binary contents")
	sum := sha256.Sum256(binary)
	findings := ChecksumRule{}.Check(Package{
		Manifest: Manifest{Checksum: hex.EncodeToString(sum[:]), SizeBytes: int64(len(binary))},
		Binary:   binary,
	})
	assert.Empty(t, findings)
}

func TestChecksumRule_FailsOnMismatch(t *testing.T) {
	findings := ChecksumRule{}.Check(Package{
		Manifest: Manifest{Checksum: "0000"},
		Binary:   []byte("binary contents"),
	})
	assert.True(t, HasErrors(findings))
}

func TestSecurityHeuristicsRule_FlagsTinyBinary(t *testing.T) {
	findings := SecurityHeuristicsRule{}.Check(Package{Binary: []byte("x")})
	assert.True(t, HasErrors(findings))
}

func TestDefaultChain_RunsAllRules(t *testing.T) {
	chain := DefaultChain()
	findings := chain.Run(Package{Manifest: Manifest{}})
	assert.NotEmpty(t, findings)
}
