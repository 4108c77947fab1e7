package chainclient

import (
	"sort"
	"sync"
	"time"
)

// HealthTracker owns one CircuitBreaker per chain and reports which chains
// are currently unreachable, so callers outside the ingestion pipeline
// (query paths, diagnostics) can see the same per-chain health the poller
// acts on.
type HealthTracker struct {
	mu          sync.Mutex
	breakers    map[uint64]*CircuitBreaker
	openAfter   int
	halfOpenFor time.Duration
}

// NewHealthTracker builds a tracker that lazily creates a breaker per chain
// on first use, all sharing the same trip threshold and cooldown.
func NewHealthTracker(openAfter int, halfOpenFor time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:    make(map[uint64]*CircuitBreaker),
		openAfter:   openAfter,
		halfOpenFor: halfOpenFor,
	}
}

// BreakerFor returns the breaker for chainID, creating one on first use.
func (h *HealthTracker) BreakerFor(chainID uint64) *CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.breakers[chainID]; ok {
		return b
	}
	b := NewCircuitBreaker(h.openAfter, h.halfOpenFor)
	h.breakers[chainID] = b
	return b
}

// OpenChainIDs returns, in ascending order, every chain whose breaker is
// currently open (tripped) or half-open (still unproven since tripping).
func (h *HealthTracker) OpenChainIDs() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []uint64
	for chainID, b := range h.breakers {
		switch b.State() {
		case "open", "half_open":
			ids = append(ids, chainID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
