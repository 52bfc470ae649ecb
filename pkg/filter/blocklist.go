// Package filter holds the in-memory set of blocked fingerprints consulted on
// every captured handshake.
package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// DefaultFalsePositiveRate is the bloom filter rate used by Reload.
	DefaultFalsePositiveRate = 0.01

	minExpected = 1000
)

// Blocklist answers fingerprint membership with a bloom filter in front of an
// exact set, so a positive answer is never a false positive.
type Blocklist struct {
	mu     sync.RWMutex
	fpRate float64
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// New creates a blocklist sized for expected fingerprints.
// A lower falsePositiveRate costs more memory.
func New(expected uint, falsePositiveRate float64) *Blocklist {
	if expected < minExpected {
		expected = minExpected
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}
	return &Blocklist{
		fpRate: falsePositiveRate,
		filter: bloom.NewWithEstimates(expected, falsePositiveRate),
		exact:  make(map[string]struct{}),
	}
}

// Add inserts a fingerprint.
func (b *Blocklist) Add(hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter.AddString(hash)
	b.exact[hash] = struct{}{}
}

// Contains reports whether hash is blocked.
func (b *Blocklist) Contains(hash string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.filter.TestString(hash) {
		return false
	}
	_, ok := b.exact[hash]
	return ok
}

// Reload replaces the contents with hashes. Removed fingerprints only leave
// the bloom filter this way.
func (b *Blocklist) Reload(hashes []string) {
	expected := uint(len(hashes))
	if expected < minExpected {
		expected = minExpected
	}

	filter := bloom.NewWithEstimates(expected, b.fpRate)
	exact := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		filter.AddString(h)
		exact[h] = struct{}{}
	}

	b.mu.Lock()
	b.filter = filter
	b.exact = exact
	b.mu.Unlock()
}

// Count returns the number of blocked fingerprints.
func (b *Blocklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact)
}
