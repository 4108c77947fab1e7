// Package ingestion polls every registered protocol adapter on a fixed
// cadence, merges in an optional per-chain push-stream, skips unchanged
// writes via a position-hash cache, and publishes normalized updates onto
// the stream bus. Modeled on the exchange-poll/reconnect loop in
// internal/realtime/market_data_service.go, repurposed from ticker streams
// to on-chain position snapshots.
package ingestion

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/riskmonitor/engine/internal/cache"
	"github.com/riskmonitor/engine/internal/chainclient"
	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/protocol"
	"github.com/riskmonitor/engine/internal/store"
	"github.com/riskmonitor/engine/internal/streambus"
	"github.com/riskmonitor/engine/pkg/observability"
)

const defaultSemaphoreWeight = 16

// WatchList supplies the accounts each adapter sweep should query, since
// FetchPositions takes an explicit account rather than enumerating an
// entire protocol.
type WatchList interface {
	AccountsFor(protocolName string, chainID uint64) []string
}

// Pipeline drives one poll cycle across every adapter in a registry.
type Pipeline struct {
	registry  *protocol.Registry
	positions store.PositionRepository
	hashCache *cache.PositionHashCache
	bus       *streambus.Bus
	watchList WatchList
	cfg       config.IngestionConfig
	logger    *observability.Logger
	sem       *semaphore.Weighted
	health    *chainclient.HealthTracker
}

// NewPipeline builds a Pipeline, opening each chain's circuit after 5
// consecutive failures with a 30s half-open probe. The returned Pipeline's
// Health tracker is the same one consulted by position/alert query paths,
// so a chain the poller has given up on is reported as degraded there too.
func NewPipeline(registry *protocol.Registry, positions store.PositionRepository, hashCache *cache.PositionHashCache, bus *streambus.Bus, watchList WatchList, cfg config.IngestionConfig, logger *observability.Logger) *Pipeline {
	weight := int64(cfg.MaxConcurrent)
	if weight <= 0 {
		weight = defaultSemaphoreWeight
	}
	return &Pipeline{
		registry:  registry,
		positions: positions,
		hashCache: hashCache,
		bus:       bus,
		watchList: watchList,
		cfg:       cfg,
		logger:    logger,
		sem:       semaphore.NewWeighted(weight),
		health:    chainclient.NewHealthTracker(5, 30*time.Second),
	}
}

// Health exposes the pipeline's per-chain circuit breakers so query paths
// can flag responses touching a currently-unreachable chain as degraded.
func (p *Pipeline) Health() *chainclient.HealthTracker {
	return p.health
}

// Run polls every adapter once per PollInterval until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep fetches one fresh snapshot per (adapter, account) pair, bounded by
// the pipeline's semaphore, and writes each changed position with its own
// Upsert; writes are not batched.
func (p *Pipeline) sweep(ctx context.Context) {
	adapters := p.registry.All()
	done := make(chan struct{}, len(adapters))

	for _, a := range adapters {
		breaker := p.health.BreakerFor(a.ChainID())
		if !breaker.Allow() {
			done <- struct{}{}
			continue
		}

		accounts := p.watchList.AccountsFor(a.ProtocolName(), a.ChainID())
		if len(accounts) == 0 {
			done <- struct{}{}
			continue
		}

		adapter := a
		go func() {
			defer func() { done <- struct{}{} }()
			p.sweepAdapter(ctx, adapter, breaker, accounts)
		}()
	}

	for range adapters {
		<-done
	}
}

func (p *Pipeline) sweepAdapter(ctx context.Context, a protocol.Adapter, breaker *chainclient.CircuitBreaker, accounts []string) {
	timeout := p.cfg.AdapterTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for _, account := range accounts {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		func() {
			defer p.sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			positions, err := a.FetchPositions(callCtx, account)
			if err != nil {
				breaker.RecordFailure()
				if p.logger != nil {
					p.logger.Warn(ctx, "ingestion: adapter fetch failed", map[string]interface{}{
						"protocol": a.ProtocolName(),
						"chain_id": a.ChainID(),
						"account":  account,
						"error":    err.Error(),
					})
				}
				return
			}
			breaker.RecordSuccess()
			p.writePositions(ctx, positions)
		}()
	}
}

func (p *Pipeline) writePositions(ctx context.Context, positions []domain.Position) {
	for _, pos := range positions {
		key := pos.UserAddress + "|" + pos.Protocol + "|" + pos.PoolAddress
		hash := pos.Hash()

		if p.hashCache != nil {
			if prev, found, err := p.hashCache.Get(ctx, key); err == nil && found && prev == hash {
				continue
			}
		}

		if _, err := p.positions.Upsert(ctx, pos); err != nil {
			if p.logger != nil {
				p.logger.Error(ctx, "ingestion: position upsert failed", err, map[string]interface{}{
					"user": pos.UserAddress, "pool": pos.PoolAddress,
				})
			}
			continue
		}
		if p.hashCache != nil {
			_ = p.hashCache.Set(ctx, key, hash)
		}

		if p.bus != nil {
			position := pos
			p.bus.Publish(streambus.Event{
				Type:     streambus.EventPositionChanged,
				User:     pos.UserAddress,
				Position: &position,
			})
		}
	}
}
