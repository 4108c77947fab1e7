// Package protocol defines the adapter framework used to fetch and score
// positions from concrete DeFi protocols, generalizing the teacher's
// DeFiProtocol/DeFiProtocolManager shape (internal/web3/defi_protocols.go)
// from its six named protocols to the spec's four structural families.
package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// Family names the structural shape an Adapter implements.
type Family string

const (
	FamilyCLAMM         Family = "clamm"
	FamilyLending       Family = "lending"
	FamilyLiquidStaking Family = "liquid_staking"
	FamilyVault         Family = "vault"
)

// Adapter fetches and scores positions for one protocol on one chain.
type Adapter interface {
	ProtocolName() string
	Family() Family
	ChainID() uint64
	FetchPositions(ctx context.Context, account string) ([]domain.Position, error)
	SupportsContract(addr string) bool
	QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error)
	RiskScore(ctx context.Context, positions []domain.Position) (uint8, error)
}

// key identifies an adapter registration slot.
type key struct {
	family  Family
	chainID uint64
}

// Registry dispatches to the adapter registered for a (family, chainID)
// pair, mirroring DeFiProtocolManager's name-keyed map but keyed on
// structural family + chain instead of a protocol name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[key][]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[key][]Adapter)}
}

// Register adds an adapter under its own (family, chainID).
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{family: a.Family(), chainID: a.ChainID()}
	r.adapters[k] = append(r.adapters[k], a)
}

// For returns every adapter registered for a given family and chain.
func (r *Registry) For(family Family, chainID uint64) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Adapter(nil), r.adapters[key{family: family, chainID: chainID}]...)
}

// All returns every registered adapter, for cycle-driven ingestion sweeps.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Adapter
	for _, group := range r.adapters {
		out = append(out, group...)
	}
	return out
}

// ByContract finds the adapter on a chain that owns the given pool/market
// contract, used when an ingestion event names only an address.
func (r *Registry) ByContract(chainID uint64, addr string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, group := range r.adapters {
		if k.chainID != chainID {
			continue
		}
		for _, a := range group {
			if a.SupportsContract(addr) {
				return a, nil
			}
		}
	}
	return nil, errs.New(errs.NotFound, "protocol.Registry.ByContract", fmt.Errorf("no adapter on chain %d supports contract %s", chainID, addr))
}
