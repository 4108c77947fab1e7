// Package riskengine composes per-protocol-family risk calculators into the
// engine's common RiskMetrics tuple, generalizing the monitor/violation
// shape of the teacher's internal/risk/engine.go (RiskMonitor, RiskMetrics,
// RiskAlert) from portfolio/exchange risk to DeFi position risk.
package riskengine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/internal/protocol"
)

// RiskMetrics is the common output of every protocol-family calculator,
// matching spec.md §4.5 verbatim.
type RiskMetrics struct {
	ImpermanentLoss  float64
	PriceImpact      float64
	VolatilityScore  float64
	CorrelationScore float64
	LiquidityScore   float64
	OverallRiskScore float64

	ValueAtRisk1d decimal.Decimal
	ValueAtRisk7d decimal.Decimal

	Confidence float64
}

// History is the time series a calculator needs: recent pool snapshots and
// price points, oldest first.
type History struct {
	PoolSnapshots []domain.PoolSnapshot
	PricePoints   []domain.PricePoint
}

// Calculator computes RiskMetrics for one protocol family.
type Calculator interface {
	Family() protocol.Family
	Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error)
}

// Registry dispatches a position to the calculator registered for its
// protocol family.
type Registry struct {
	calculators map[protocol.Family]Calculator
}

// NewRegistry builds a registry with the four standard calculators
// pre-registered.
func NewRegistry() *Registry {
	r := &Registry{calculators: make(map[protocol.Family]Calculator)}
	r.Register(&CLAMMCalculator{})
	r.Register(&LendingCalculator{})
	r.Register(&LiquidStakingCalculator{})
	r.Register(&VaultCalculator{})
	return r
}

// Register adds or replaces the calculator for a family.
func (r *Registry) Register(c Calculator) {
	r.calculators[c.Family()] = c
}

// Compute dispatches by the position's Kind, mapped 1:1 onto a
// protocol.Family.
func (r *Registry) Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error) {
	family := familyForKind(position.Kind)
	calc, ok := r.calculators[family]
	if !ok {
		return RiskMetrics{}, errs.Newf(errs.InvalidInput, "riskengine.Registry.Compute", "no calculator registered for family %s", family)
	}
	return calc.Compute(ctx, position, pool, history, weights)
}

// ComposeWrapped implements the tie-break rule for a position wrapped by
// another protocol (e.g. a vault holding LP tokens): severity is the max
// across layers, score is a weighted mean with weight equal to wrapper
// depth, exactly as spec.md §4.5's last paragraph.
func ComposeWrapped(layers []RiskMetrics, depths []int) (RiskMetrics, error) {
	if len(layers) != len(depths) || len(layers) == 0 {
		return RiskMetrics{}, errs.New(errs.InvalidInput, "riskengine.ComposeWrapped", fmt.Errorf("layers and depths must be equal-length and non-empty"))
	}

	var weightedSum, totalWeight float64
	var minConfidence = 1.0
	var var1d, var7d decimal.Decimal

	for i, m := range layers {
		weight := float64(depths[i])
		if weight <= 0 {
			weight = 1
		}
		weightedSum += m.OverallRiskScore * weight
		totalWeight += weight
		if m.Confidence < minConfidence {
			minConfidence = m.Confidence
		}
		var1d = var1d.Add(m.ValueAtRisk1d)
		var7d = var7d.Add(m.ValueAtRisk7d)
	}

	return RiskMetrics{
		OverallRiskScore: weightedSum / totalWeight,
		Confidence:       minConfidence,
		ValueAtRisk1d:    var1d,
		ValueAtRisk7d:    var7d,
	}, nil
}

// SeverityAcrossLayers implements the "max of severities" half of the
// tie-break rule: the composed alert severity for a wrapped position is the
// worst severity any individual layer would produce on its own.
func SeverityAcrossLayers(severities []domain.Severity) domain.Severity {
	rank := map[domain.Severity]int{
		domain.SeverityLow:      0,
		domain.SeverityMedium:   1,
		domain.SeverityHigh:     2,
		domain.SeverityCritical: 3,
	}
	worst := domain.SeverityLow
	for _, s := range severities {
		if rank[s] > rank[worst] {
			worst = s
		}
	}
	return worst
}

func familyForKind(kind domain.PoolKind) protocol.Family {
	switch kind {
	case domain.PoolKindCLAMM:
		return protocol.FamilyCLAMM
	case domain.PoolKindLending:
		return protocol.FamilyLending
	case domain.PoolKindLiquidStaking:
		return protocol.FamilyLiquidStaking
	case domain.PoolKindVault:
		return protocol.FamilyVault
	default:
		return protocol.FamilyCLAMM
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
