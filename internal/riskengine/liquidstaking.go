package riskengine

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/protocol"
)

// LiquidStakingCalculator scores staked positions on slashing prior, peg
// deviation, withdrawal-queue time, governance centralization, and
// restaking-provider exposure — each normalized to [0,1], composed as a
// fixed weighted sum.
type LiquidStakingCalculator struct {
	// SlashingPrior, GovernanceCentralization, RestakingProviderRisk and
	// WithdrawalQueueScore are protocol-level priors not derivable from
	// on-chain state alone; callers populate them per protocol (e.g.
	// validator set concentration reports, current unstake queue depth).
	SlashingPrior            float64
	GovernanceCentralization float64
	RestakingProviderRisk    float64
	WithdrawalQueueScore     float64
}

func (c *LiquidStakingCalculator) Family() protocol.Family { return protocol.FamilyLiquidStaking }

func (c *LiquidStakingCalculator) Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error) {
	pegDeviation := pegDeviationFromHistory(history.PricePoints)
	withdrawalQueueScore := clamp01(c.WithdrawalQueueScore)

	const (
		slashingWeight    = 0.30
		pegWeight         = 0.25
		queueWeight       = 0.15
		governanceWeight  = 0.15
		restakingWeight   = 0.15
	)

	overall := slashingWeight*c.SlashingPrior +
		pegWeight*pegDeviation +
		queueWeight*withdrawalQueueScore +
		governanceWeight*c.GovernanceCentralization +
		restakingWeight*c.RestakingProviderRisk

	return RiskMetrics{
		ImpermanentLoss:  0,
		PriceImpact:      pegDeviation,
		VolatilityScore:  pegDeviation,
		CorrelationScore: 0,
		LiquidityScore:   clamp01(1 - withdrawalQueueScore),
		OverallRiskScore: clamp01(overall),
		ValueAtRisk1d:    decimal.Zero,
		ValueAtRisk7d:    decimal.Zero,
		Confidence:       1.0,
	}, nil
}

func pegDeviationFromHistory(prices []domain.PricePoint) float64 {
	if len(prices) == 0 {
		return 0
	}
	latest := prices[len(prices)-1].PriceUSD
	f, _ := latest.Float64()
	return clamp01(math.Abs(f-1.0) / 0.05)
}
