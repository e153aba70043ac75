// Package random provides injectable sources of randomness.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Source represents random source used for shuffles.
//
// Implementations should be safe for concurrent use.
type Source interface {
	// Shuffle pseudo-randomizes the order of n elements.
	Shuffle(n int, swap func(i, j int))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewSource returns deterministic source for specified seed.
func NewSource(seed int64) Source {
	return &lockedSource{rand: rand.New(rand.NewSource(seed))}
}

// NewCryptoSeededSource returns source seeded from crypto/rand.
func NewCryptoSeededSource() (Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSource(seed), nil
}

type lockedSource struct {
	rand  *rand.Rand
	mutex sync.Mutex
}

func (s *lockedSource) Shuffle(n int, swap func(i, j int)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rand.Shuffle(n, swap)
}

// Shuffled returns shuffled copy of values.
func Shuffled[T any](src Source, values []T) []T {
	result := make([]T, len(values))
	copy(result, values)
	src.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	return result
}
