// Package entropy provides the randomness used while loading scenario data.
// A fixed seed makes scenario construction fully reproducible; with no seed
// configured the source is seeded from crypto/rand. Nothing downstream of
// loading consumes randomness — replays stay deterministic.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Source wraps a seeded PRNG. Not safe for concurrent use; scenario loading
// is single-threaded.
type Source struct {
	seed int64
	rng  *rand.Rand
}

// NewSource creates a source from the given seed. A seed of 0 means
// "unseeded": a fresh seed is drawn from crypto/rand instead.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = cryptoSeed()
	}
	return &Source{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed actually in use, so an unseeded run can still be
// reported and reproduced.
func (s *Source) Seed() int64 {
	return s.seed
}

// Intn returns a uniform int in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Shuffle pseudo-randomizes the order of n elements via the swap function.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// cryptoSeed draws a non-zero seed from crypto/rand, falling back to the
// clock if the system source fails.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
