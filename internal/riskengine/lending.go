package riskengine

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/numeric"
	"github.com/riskmonitor/engine/internal/protocol"
)

// LendingCalculator scores lending positions by liquidation proximity,
// interest-drift-driven volatility, and VaR on historical collateral
// returns.
type LendingCalculator struct{}

func (c *LendingCalculator) Family() protocol.Family { return protocol.FamilyLending }

func (c *LendingCalculator) Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error) {
	liquidationFactor := weightedLiquidationFactor(pool.Collateral)
	hf := protocol.HealthFactor(position, liquidationFactor)

	var liquidationProximity float64
	switch {
	case math.IsInf(hf, 1):
		liquidationProximity = 0
	case hf <= 1:
		liquidationProximity = clamp01(1 - hf)
	default:
		liquidationProximity = clamp01(1 / hf)
	}

	volatility := interestDriftVolatility(pool)

	var1d, var7d := collateralReturnsVaR(history.PricePoints, weights.VaRConfidence, position.CollateralUSD)

	overall := weights.LPImpermanentLoss*0 +
		weights.LPVolatility*volatility +
		weights.LPLiquidity*liquidationProximity

	return RiskMetrics{
		ImpermanentLoss:  0,
		PriceImpact:      liquidationProximity,
		VolatilityScore:  clamp01(volatility),
		CorrelationScore: 0,
		LiquidityScore:   clamp01(1 - liquidationProximity),
		OverallRiskScore: clamp01(overall + liquidationProximity*0.5),
		ValueAtRisk1d:    var1d,
		ValueAtRisk7d:    var7d,
		Confidence:       1.0,
	}, nil
}

// weightedLiquidationFactor averages a market's per-asset liquidation
// factors, weighted equally since per-position collateral mix is not
// tracked at the pool level.
func weightedLiquidationFactor(collateral []domain.CollateralAsset) decimal.Decimal {
	if len(collateral) == 0 {
		return decimal.NewFromFloat(0.8)
	}
	sum := decimal.Zero
	for _, c := range collateral {
		sum = sum.Add(c.LiquidationFactor)
	}
	return sum.Div(decimal.NewFromInt(int64(len(collateral))))
}

// interestDriftVolatility scores the dispersion (sample stddev) of the
// market's current collateral APRs against a 2pp band, proxying rate-risk
// as volatility. It reads only current APRs; drift over time is not measured.
func interestDriftVolatility(pool domain.Pool) float64 {
	if len(pool.Collateral) == 0 {
		return 0
	}
	aprs := make([]decimal.Decimal, len(pool.Collateral))
	for i, c := range pool.Collateral {
		aprs[i] = c.InterestRateApr
	}
	stddev := numeric.StdDev(aprs)
	f, _ := stddev.Float64()
	const targetAprStdDev = 0.02 // 2pp of APR dispersion treated as the "normal" band ceiling
	return clamp01(f / targetAprStdDev)
}

func collateralReturnsVaR(prices []domain.PricePoint, confidence float64, collateralUSD decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(prices) < 2 {
		return decimal.Zero, decimal.Zero
	}
	returns := make([]decimal.Decimal, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].PriceUSD
		curr := prices[i].PriceUSD
		if prev.IsZero() {
			continue
		}
		returns = append(returns, curr.Sub(prev).Div(prev))
	}
	var1d := numeric.ValueAtRisk(returns, decimal.NewFromFloat(confidence)).Mul(collateralUSD)
	var7d := var1d.Mul(decimal.NewFromFloat(math.Sqrt(7)))
	return var1d, var7d
}
