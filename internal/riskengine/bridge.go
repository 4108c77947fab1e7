package riskengine

import (
	"context"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/store"
	"github.com/riskmonitor/engine/internal/streambus"
	"github.com/riskmonitor/engine/pkg/observability"
)

const historyDepth = 30

// Bridge subscribes to position updates, recomputes risk through a
// Registry, persists the result, and republishes it so internal/alertengine
// can evaluate thresholds against a fresh score.
type Bridge struct {
	registry  *Registry
	snapshots store.PoolSnapshotRepository
	prices    store.PriceHistoryRepository
	risks     store.RiskAssessmentRepository
	bus       *streambus.Bus
	weights   config.RiskWeightsConfig
	logger    *observability.Logger
}

func NewBridge(registry *Registry, snapshots store.PoolSnapshotRepository, prices store.PriceHistoryRepository, risks store.RiskAssessmentRepository, bus *streambus.Bus, weights config.RiskWeightsConfig, logger *observability.Logger) *Bridge {
	return &Bridge{
		registry:  registry,
		snapshots: snapshots,
		prices:    prices,
		risks:     risks,
		bus:       bus,
		weights:   weights,
		logger:    logger,
	}
}

// Run recomputes risk for every PositionChanged event until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.bus.Subscribe(func(ev streambus.Event) bool {
		return ev.Type == streambus.EventPositionChanged
	})
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sub.Events():
			if ev.Position != nil {
				b.recompute(ctx, *ev.Position)
			}
		}
	}
}

func (b *Bridge) recompute(ctx context.Context, pos domain.Position) {
	history := History{}
	if b.snapshots != nil {
		if snaps, err := b.snapshots.Recent(ctx, pos.ChainID, pos.PoolAddress, historyDepth); err == nil {
			history.PoolSnapshots = snaps
		}
	}

	pool := domain.Pool{ChainID: pos.ChainID, Address: pos.PoolAddress, Protocol: pos.Protocol, Kind: pos.Kind}
	if len(history.PoolSnapshots) > 0 {
		latest := history.PoolSnapshots[len(history.PoolSnapshots)-1]
		pool.Tick = latest.Tick
		pool.Liquidity = latest.Liquidity
		pool.TVLUSD = latest.TVLUSD
	}

	metrics, err := b.registry.Compute(ctx, pos, pool, history, b.weights)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn(ctx, "riskengine: compute failed", map[string]interface{}{
				"pool": pos.PoolAddress, "protocol": pos.Protocol, "error": err.Error(),
			})
		}
		return
	}

	entityID := pos.ID.String()
	assessment := domain.RiskAssessment{
		EntityType: domain.EntityPosition,
		EntityID:   entityID,
		RiskType:   domain.RiskOverall,
		Score:      metrics.OverallRiskScore,
		Severity:   domain.SeverityFromScore(metrics.OverallRiskScore),
		Confidence: metrics.Confidence,
		IsActive:   true,
	}

	id, err := b.risks.Upsert(ctx, assessment)
	if err != nil {
		if b.logger != nil {
			b.logger.Error(ctx, "riskengine: assessment upsert failed", err, nil)
		}
		return
	}
	assessment.ID = id

	if b.bus != nil {
		b.bus.Publish(streambus.Event{
			Type: streambus.EventRiskComputed,
			User: pos.UserAddress,
			Risk: &assessment,
		})
	}
}
