// Package id generates identifiers for snapshots, index builds and requests.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet excludes look-alike characters so ids are easy to read back from logs.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const size = 14

// Prefixes for generated ids.
const (
	PrefixSnapshot = "snap"
	PrefixIndex    = "idx"
)

// Generate creates a prefixed id such as "snap-7kq2m9xw4hbn3c".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Request returns a correlation id for one logical request.
func Request() string {
	return uuid.NewString()
}
