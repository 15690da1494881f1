// Package registry implements the Local Registry (C6): persistent
// installed-extension state, component binaries, a badger-backed
// URL-pattern routing cache, and a pluggable install-time validation
// chain.
package registry

import "time"

// URLPattern is one URL prefix an extension claims to handle, along with
// the priority it should be preferred at when more than one installed
// extension's pattern matches the same URL. Higher priority wins;
// extensions installed earlier win ties.
type URLPattern struct {
	Pattern  string `json:"pattern" validate:"required,url"`
	Priority int    `json:"priority"`
}

// InstalledExtension is the persisted record for one installed
// extension: its identity, the store it came from, and where its
// component binary lives in the registry.
type InstalledExtension struct {
	ID          string       `json:"id"`
	Version     string       `json:"version"`
	SourceStore string       `json:"source_store"`
	BinaryPath  string       `json:"binary_path"`
	URLPatterns []URLPattern `json:"url_patterns"`
	InstalledAt time.Time    `json:"installed_at"`
}

// InstallOptions controls an Install call.
type InstallOptions struct {
	Version        string // not read: Install takes the one package the store holds for the id
	Force          bool   // replace an existing installation of the same id
	SkipValidation bool
}

// Severity classifies a validation finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one validation-chain result.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// HasErrors reports whether any finding is Error-severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Manifest is the declared metadata a candidate extension package ships
// alongside its binary, checked by the validation chain before install.
// The validate tags drive ManifestSchemaRule's go-playground/validator
// pass; URLPatterns' own emptiness is a softer Warning handled outside
// the struct tags, since a manifest with no patterns is unusual but not
// malformed.
type Manifest struct {
	ID          string       `json:"id" validate:"required"`
	Version     string       `json:"version" validate:"required"`
	Name        string       `json:"name"`
	URLPatterns []URLPattern `json:"url_patterns" validate:"omitempty,dive"`
	Checksum    string       `json:"checksum"` // hex sha256 of the binary, checked by ChecksumRule
	Signature   string       `json:"signature,omitempty"` // base64 PASETO v4 signature, optional
	SizeBytes   int64        `json:"size_bytes" validate:"gte=0"`
}

// Package is a candidate extension fetched from a store, ready to
// validate and install.
type Package struct {
	Manifest Manifest
	Binary   []byte
}
