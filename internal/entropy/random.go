// Package entropy provides the seedable random streams used by the model.
// The simulation stream advances freely across years; display sampling gets
// a fresh stream per year so repeated renders of one year are identical.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// Offsets keep the derived streams apart when several share a base seed.
const (
	simOffset     = 300
	climateOffset = 500
)

// Streams holds the random sources for one model run.
type Streams struct {
	Seed int64      // Base seed actually used (reported for reproduction)
	Sim  *rand.Rand // Health jitter, iteration order, replanting draws
}

// NewStreams creates the run's streams. A zero seed draws one from crypto/rand.
func NewStreams(seed int64) *Streams {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Streams{
		Seed: seed,
		Sim:  rand.New(rand.NewSource(seed + simOffset)),
	}
}

// ClimateSeed derives the seed for a generated climate series.
func (s *Streams) ClimateSeed() int64 {
	return s.Seed + climateOffset
}

// ForDisplay returns a stream seeded by year, independent of the simulation.
func ForDisplay(year int) *rand.Rand {
	return rand.New(rand.NewSource(int64(year)))
}

// Sample returns up to n distinct elements of items, chosen with rng.
// The input slice is not modified.
func Sample[T any](rng *rand.Rand, items []T, n int) []T {
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	out := make([]T, 0, n)
	for _, i := range rng.Perm(len(items))[:n] {
		out = append(out, items[i])
	}
	return out
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// This should never happen.
		return 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}
