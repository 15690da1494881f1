// Package id generates short, URL-safe, collision-resistant identifiers
// for transient storage-engine artifacts (temp-file suffixes) that need
// uniqueness but no database-assigned sequence.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "tmp-V1StGXR8_Z5jdHi6B-myT").
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36), and
// use a larger alphabet for better entropy per character.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails. Use
// only where failure should crash the program (process entropy is
// exhausted at that point, which merits a hard stop).
func MustGenerate(prefix string) string {
	gid, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return gid
}
