package alertengine

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// bloomFilter is a small hand-rolled Bloom filter: a bitset hashed by two
// independent FNV variants combined via Kirsch-Mitzenmacher double
// hashing. The pack's dependency set has no Bloom-filter library (its
// only bitset-shaped candidates are Merkle/trie structures unrelated to
// set-membership probing), so this stays on the stdlib hash/fnv package.
type bloomFilter struct {
	bits []uint64
	m    uint64
	k    int
}

func newBloomFilter(bits uint64, k int) *bloomFilter {
	words := (bits + 63) / 64
	if words == 0 {
		words = 1
	}
	return &bloomFilter{bits: make([]uint64, words), m: words * 64, k: k}
}

func (f *bloomFilter) hashes(key string) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write([]byte(key))
	h2 := fnv.New64()
	h2.Write([]byte(key))
	return h1.Sum64(), h2.Sum64()
}

func (f *bloomFilter) add(key string) {
	h1, h2 := f.hashes(key)
	for i := 0; i < f.k; i++ {
		idx := (h1 + uint64(i)*h2) % f.m
		f.bits[idx/64] |= 1 << (idx % 64)
	}
}

func (f *bloomFilter) mightContain(key string) bool {
	h1, h2 := f.hashes(key)
	for i := 0; i < f.k; i++ {
		idx := (h1 + uint64(i)*h2) % f.m
		if f.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// dedup suppresses repeat alerts for the same (user, metric, entity) within
// one cooldown bucket. The Bloom filter answers "definitely new" cheaply;
// an exact set backs the cases the filter can't rule out, so a false
// positive never silently swallows a real alert.
type dedup struct {
	mu       sync.Mutex
	bloom    *bloomFilter
	exact    map[string]struct{}
	cooldown time.Duration
}

func newDedup(cooldown time.Duration) *dedup {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &dedup{
		bloom:    newBloomFilter(1<<16, 4),
		exact:    make(map[string]struct{}),
		cooldown: cooldown,
	}
}

func (d *dedup) key(user, metric, entity string, now time.Time) string {
	bucket := now.Unix() / int64(d.cooldown.Seconds())
	return fmt.Sprintf("%s|%s|%s|%d", user, metric, entity, bucket)
}

// Seen reports whether this (user, metric, entity) combination has already
// fired within the current cooldown bucket, recording it as seen either way.
func (d *dedup) Seen(user, metric, entity string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := d.key(user, metric, entity, now)
	if !d.bloom.mightContain(key) {
		d.bloom.add(key)
		d.exact[key] = struct{}{}
		return false
	}
	_, seen := d.exact[key]
	d.exact[key] = struct{}{}
	return seen
}
