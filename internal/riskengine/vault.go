package riskengine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/numeric"
	"github.com/riskmonitor/engine/internal/protocol"
)

// VaultCalculator scores ERC-4626-shaped vault positions on underlying
// asset volatility, strategy complexity, TVL trend, and protocol maturity.
type VaultCalculator struct {
	// StrategyComplexity and ProtocolMaturity are priors supplied per vault
	// (strategy tag and protocol age are not present on domain.Pool itself).
	StrategyComplexity float64
	ProtocolMaturity   float64 // 1.0 = least mature, 0.0 = most mature
}

func (c *VaultCalculator) Family() protocol.Family { return protocol.FamilyVault }

func (c *VaultCalculator) Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error) {
	volatility := volatilityFromSnapshots(history.PoolSnapshots)
	tvlTrend := tvlTrendScore(history.PoolSnapshots)

	const (
		volatilityWeight = 0.30
		complexityWeight = 0.25
		tvlTrendWeight   = 0.25
		maturityWeight   = 0.20
	)

	overall := volatilityWeight*volatility +
		complexityWeight*c.StrategyComplexity +
		tvlTrendWeight*tvlTrend +
		maturityWeight*c.ProtocolMaturity

	return RiskMetrics{
		ImpermanentLoss:  0,
		PriceImpact:      0,
		VolatilityScore:  clamp01(volatility),
		CorrelationScore: 0,
		LiquidityScore:   clamp01(1 - tvlTrend),
		OverallRiskScore: clamp01(overall),
		ValueAtRisk1d:    decimal.Zero,
		ValueAtRisk7d:    decimal.Zero,
		Confidence:       1.0,
	}, nil
}

// tvlTrendScore scores a shrinking vault (redemptions outpacing deposits)
// as higher risk than a stable or growing one.
func tvlTrendScore(snapshots []domain.PoolSnapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}
	first := snapshots[0].TVLUSD
	last := snapshots[len(snapshots)-1].TVLUSD
	if first.IsZero() {
		return 0
	}
	change, err := numeric.PercentageChange(first, last)
	if err != nil {
		return 0
	}
	f, _ := change.Float64()
	if f >= 0 {
		return 0
	}
	return clamp01(-f / 50.0) // a 50% TVL drop over the window is treated as maximal risk
}
