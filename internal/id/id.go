// Package id generates the string identifiers the server hands out itself.
// Entity rows use numeric ids assigned by the remote store; these ids cover
// everything that lives only in the server process.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for server-generated identifiers.
const (
	PrefixSSEClient = "sse"
	PrefixView      = "view"
	PrefixJob       = "job"
)

// Generate creates a prefixed NanoID, e.g. "view-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
