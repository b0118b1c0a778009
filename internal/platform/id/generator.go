package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const randomBytes = 16

// Generator creates opaque row IDs.
type Generator interface {
	NewID() (string, error)
}

// RandomGenerator returns 32 hex characters, optionally behind a prefix
// such as "sws_" so IDs can be traced back to their table.
type RandomGenerator struct {
	prefix string
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func NewPrefixedGenerator(prefix string) *RandomGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return &RandomGenerator{prefix: prefix}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return g.prefix + hex.EncodeToString(buf), nil
}
