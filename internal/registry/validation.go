package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"aidanwoods.dev/go-paseto"
	"github.com/go-playground/validator/v10"
)

// Rule is one link in the install-time validation chain. Each rule
// inspects a candidate Package and reports zero or more Findings; a
// rule never halts the chain itself — severity decides that, at the
// Install call site.
type Rule interface {
	Check(pkg Package) []Finding
}

// Chain runs every Rule over a package and concatenates their findings.
type Chain struct {
	rules []Rule
}

// NewChain builds a validation chain from rules, run in order.
func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// Run executes every rule against pkg.
func (c *Chain) Run(pkg Package) []Finding {
	var findings []Finding
	for _, r := range c.rules {
		findings = append(findings, r.Check(pkg)...)
	}
	return findings
}

// DefaultChain is the standard chain: manifest schema, checksum, and a
// handful of security heuristics. SignatureRule is not part of it, since
// it requires a per-publisher public key the caller must supply; a
// caller that wants it builds its own chain with NewChain.
func DefaultChain() *Chain {
	return NewChain(
		ManifestSchemaRule{},
		ChecksumRule{},
		SecurityHeuristicsRule{},
	)
}

// manifestValidator is the shared go-playground/validator instance for
// ManifestSchemaRule, configured once like the teacher's own
// internal/validation.New.
var manifestValidator = validator.New()

// ManifestSchemaRule checks that required manifest fields are present
// and that every declared URL pattern is at least a well-formed URL,
// via struct tags on Manifest rather than hand-rolled field checks.
type ManifestSchemaRule struct{}

func (ManifestSchemaRule) Check(pkg Package) []Finding {
	var findings []Finding
	m := pkg.Manifest

	if len(m.URLPatterns) == 0 {
		findings = append(findings, Finding{SeverityWarning, "MANIFEST_NO_URL_PATTERNS", "manifest declares no url patterns; it will never be resolved for a url automatically"})
	}

	if err := manifestValidator.Struct(m); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			findings = append(findings, Finding{SeverityError, "MANIFEST_INVALID", err.Error()})
			return findings
		}
		for _, fe := range validationErrs {
			findings = append(findings, Finding{
				SeverityError,
				"MANIFEST_" + strings.ToUpper(fe.Field()) + "_" + strings.ToUpper(fe.Tag()),
				fmt.Sprintf("manifest field %q fails %q validation", fe.Field(), fe.Tag()),
			})
		}
	}
	return findings
}

// ChecksumRule verifies the manifest's declared sha256 checksum matches
// the actual binary bytes, catching a truncated download or a
// tampered-with package before it's ever linked into the runtime.
type ChecksumRule struct{}

func (ChecksumRule) Check(pkg Package) []Finding {
	if pkg.Manifest.Checksum == "" {
		return []Finding{{SeverityError, "CHECKSUM_MISSING", "manifest declares no checksum"}}
	}
	sum := sha256.Sum256(pkg.Binary)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(actual, pkg.Manifest.Checksum) {
		return []Finding{{SeverityError, "CHECKSUM_MISMATCH", fmt.Sprintf("binary checksum %s does not match manifest checksum %s", actual, pkg.Manifest.Checksum)}}
	}
	if pkg.Manifest.SizeBytes > 0 && int64(len(pkg.Binary)) != pkg.Manifest.SizeBytes {
		return []Finding{{SeverityWarning, "SIZE_MISMATCH", "binary size does not match manifest declared size"}}
	}
	return nil
}

// SecurityHeuristicsRule applies a handful of cheap sanity checks that
// don't require parsing the module itself: a minimum size sanity floor
// (catches an empty/truncated download) and a maximum size ceiling
// (catches a runaway or malicious oversized payload).
type SecurityHeuristicsRule struct {
	MinSize int64
	MaxSize int64
}

func (r SecurityHeuristicsRule) Check(pkg Package) []Finding {
	minSize, maxSize := r.MinSize, r.MaxSize
	if minSize == 0 {
		minSize = 8
	}
	if maxSize == 0 {
		maxSize = 64 << 20 // 64 MiB
	}

	var findings []Finding
	size := int64(len(pkg.Binary))
	if size < minSize {
		findings = append(findings, Finding{SeverityError, "BINARY_TOO_SMALL", "binary is implausibly small to be a valid extension module"})
	}
	if size > maxSize {
		findings = append(findings, Finding{SeverityError, "BINARY_TOO_LARGE", fmt.Sprintf("binary exceeds the %d byte size ceiling", maxSize)})
	}
	return findings
}

// SignatureRule verifies a PASETO v4 public-key signature over the
// manifest's checksum, confirming the package was published by the
// holder of pubKey rather than merely hosted by a trusted-looking store.
// A missing signature is a Warning, not an Error — signing is opt-in.
type SignatureRule struct {
	PubKey paseto.V4AsymmetricPublicKey
}

func (r SignatureRule) Check(pkg Package) []Finding {
	if pkg.Manifest.Signature == "" {
		return []Finding{{SeverityWarning, "SIGNATURE_MISSING", "package is unsigned"}}
	}

	parser := paseto.NewParser()
	token, err := parser.ParseV4Public(r.PubKey, pkg.Manifest.Signature, nil)
	if err != nil {
		return []Finding{{SeverityError, "SIGNATURE_INVALID", fmt.Sprintf("signature verification failed: %v", err)}}
	}

	claimedChecksum, err := token.GetString("checksum")
	if err != nil || !strings.EqualFold(claimedChecksum, pkg.Manifest.Checksum) {
		return []Finding{{SeverityError, "SIGNATURE_CHECKSUM_MISMATCH", "signed checksum does not match the manifest checksum"}}
	}
	return nil
}
