// Package fingerprint computes the integrity hash recorded for every
// accepted chunk. The hash is audit evidence only; deduplication uses the
// (recording, chunk start) key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/types"
	"github.com/xtxerr/eegstore/internal/wire"
)

// Supported algorithms.
const (
	SHA256     = "sha256"
	BLAKE2b256 = "blake2b-256"
)

// Hex length of every supported digest.
const HexLen = 64

// Hasher computes chunk fingerprints with one algorithm.
type Hasher struct {
	algo    string
	newHash func() hash.Hash
}

// New returns a Hasher for algo. Empty selects SHA256.
func New(algo string) (*Hasher, error) {
	switch algo {
	case "", SHA256:
		return &Hasher{algo: SHA256, newHash: sha256.New}, nil
	case BLAKE2b256:
		return &Hasher{algo: BLAKE2b256, newHash: newBlake2b}, nil
	default:
		return nil, fmt.Errorf("fingerprint algorithm %q: %w", algo, errors.ErrInvalidConfig)
	}
}

func newBlake2b() hash.Hash {
	// Only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}

// Algorithm returns the algorithm name stored alongside each fingerprint.
func (h *Hasher) Algorithm() string {
	return h.algo
}

// Sum fingerprints the channel order and every value, channel-major.
func (h *Hasher) Sum(channels []string, data [][]float64) string {
	d := h.newHash()
	d.Write(wire.CanonicalBytes(channels, data))
	return hex.EncodeToString(d.Sum(nil))
}

// Chunk fingerprints a chunk.
func (h *Hasher) Chunk(c *types.Chunk) string {
	return h.Sum(c.Channels, c.Data)
}
