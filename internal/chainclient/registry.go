package chainclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/observability"
)

// Registry holds one dialed Client per configured chain.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]Client
}

// NewRegistry dials every configured chain endpoint up front. A dial
// failure for one chain does not prevent the others from being usable; it
// is returned as a joined error so callers can decide whether to proceed
// with a degraded chain set.
func NewRegistry(ctx context.Context, cfg config.ChainConfig, logger *observability.Logger) (*Registry, error) {
	r := &Registry{clients: make(map[uint64]Client)}
	var failures []error
	for _, endpoint := range cfg.Endpoints {
		c, err := Dial(ctx, endpoint, cfg, logger)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		r.clients[endpoint.ChainID] = c
	}
	if len(failures) > 0 {
		return r, errs.New(errs.Transient, "chainclient.NewRegistry", fmt.Errorf("%d chain(s) failed to dial: %v", len(failures), failures))
	}
	return r, nil
}

// Get returns the client for a chain ID.
func (r *Registry) Get(chainID uint64) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[chainID]
	return c, ok
}

// ChainIDs returns every chain this registry has a live client for.
func (r *Registry) ChainIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
