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

// CLAMMCalculator scores concentrated-liquidity positions: impermanent
// loss from the entry/current sqrt-price ratio, volatility from log
// returns, liquidity depth, and a fixed weighted overall score.
type CLAMMCalculator struct{}

func (c *CLAMMCalculator) Family() protocol.Family { return protocol.FamilyCLAMM }

func (c *CLAMMCalculator) Compute(ctx context.Context, position domain.Position, pool domain.Pool, history History, weights config.RiskWeightsConfig) (RiskMetrics, error) {
	inRange := position.TickLower <= pool.Tick && pool.Tick <= position.TickUpper

	il := 0.0
	priceImpact := 0.0
	if inRange {
		il = impermanentLossFraction(position.TickLower, position.TickUpper, pool.Tick)
	} else {
		priceImpact = outOfRangeExposure(position.TickLower, position.TickUpper, pool.Tick)
	}

	volatility := volatilityFromSnapshots(history.PoolSnapshots)

	liquidityScore := 0.0
	if !pool.Liquidity.IsZero() {
		share, _ := position.Liquidity.Div(pool.Liquidity).Float64()
		liquidityScore = clamp01(1 - math.Min(1, share))
	}

	correlation := 0.0 // single-pool position; cross-token correlation computed at portfolio level

	overall := weights.LPImpermanentLoss*il +
		weights.LPPriceImpact*priceImpact +
		weights.LPVolatility*volatility +
		weights.LPCorrelation*correlation +
		weights.LPLiquidity*liquidityScore

	positionUSD := decimal.Zero
	if !pool.Liquidity.IsZero() {
		positionUSD = position.Liquidity.Div(pool.Liquidity).Mul(pool.TVLUSD)
	}
	var1d, var7d := varFromSnapshots(history.PoolSnapshots, weights.VaRConfidence, positionUSD)

	return RiskMetrics{
		ImpermanentLoss:  clamp01(il),
		PriceImpact:      clamp01(priceImpact),
		VolatilityScore:  clamp01(volatility),
		CorrelationScore: clamp01(correlation),
		LiquidityScore:   clamp01(liquidityScore),
		OverallRiskScore: clamp01(overall),
		ValueAtRisk1d:    var1d,
		ValueAtRisk7d:    var7d,
		Confidence:       1.0,
	}, nil
}

// impermanentLossFraction computes IL for a concentrated range position
// using the actual Uniswap-v3 per-tick reserve formulas, not the full-range
// (Uniswap-v2) approximation: for unit liquidity L=1 and sqrt-price s(tick)
// = 1.0001^(tick/2), holding a range [Pa,Pb] gives reserves
//
//	x(s) = 1/s - 1/sqrt(Pb)   y(s) = s - sqrt(Pa)
//
// at any in-range sqrt-price s. IL is the LP value at the current price
// against the value of the entry-time reserves simply marked to the
// current price (the HODL baseline), both expressed in the same numeraire.
// Entry price is approximated as the range midpoint tick, since a position
// does not carry a separate entry-price field beyond its range.
func impermanentLossFraction(tickLower, tickUpper, currentTick int32) float64 {
	entryTick := (tickLower + tickUpper) / 2
	sqrtPa := sqrtPriceAtTick(tickLower)
	sqrtPb := sqrtPriceAtTick(tickUpper)
	sqrtP0 := sqrtPriceAtTick(entryTick)
	sqrtP1 := sqrtPriceAtTick(currentTick)
	if sqrtPb <= 0 || sqrtP0 <= 0 || sqrtP1 <= 0 {
		return 0
	}

	x0 := 1/sqrtP0 - 1/sqrtPb
	y0 := sqrtP0 - sqrtPa
	x1 := 1/sqrtP1 - 1/sqrtPb
	y1 := sqrtP1 - sqrtPa

	price := sqrtP1 * sqrtP1
	lpValue := x1*price + y1
	hodlValue := x0*price + y0
	if hodlValue == 0 {
		return 0
	}
	return math.Abs((lpValue - hodlValue) / hodlValue)
}

// sqrtPriceAtTick mirrors numeric.TickToSqrtPriceX96's unscaled formula,
// operating on plain floats since IL only needs a price ratio, not the
// on-chain Q64.96 encoding.
func sqrtPriceAtTick(tick int32) float64 {
	return math.Pow(1.0001, float64(tick)/2.0)
}

// outOfRangeExposure estimates single-sided price-impact exposure as the
// normalized tick distance from the nearest range boundary.
func outOfRangeExposure(tickLower, tickUpper, currentTick int32) float64 {
	var distance int32
	if currentTick < tickLower {
		distance = tickLower - currentTick
	} else {
		distance = currentTick - tickUpper
	}
	rangeWidth := tickUpper - tickLower
	if rangeWidth <= 0 {
		rangeWidth = 1
	}
	return clamp01(float64(distance) / float64(rangeWidth))
}

// volatilityFromSnapshots computes stddev of log-returns on pool TVL over
// the snapshot history, clamped against a fixed 5% target band.
func volatilityFromSnapshots(snapshots []domain.PoolSnapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}
	logReturns := make([]decimal.Decimal, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TVLUSD
		curr := snapshots[i].TVLUSD
		if prev.IsZero() || curr.IsZero() || curr.IsNegative() || prev.IsNegative() {
			continue
		}
		prevF, _ := prev.Float64()
		currF, _ := curr.Float64()
		logReturns = append(logReturns, decimal.NewFromFloat(math.Log(currF/prevF)))
	}
	stddev := numeric.StdDev(logReturns)
	f, _ := stddev.Float64()
	const targetVolatility = 0.05 // 5% daily log-return stddev treated as the "normal" band ceiling
	return clamp01(f / targetVolatility)
}

// varFromSnapshots computes 1d/7d historical-simulation VaR in USD from the
// pool's TVL return series, scaled by the position's own USD value (its
// liquidity share of pool TVL).
func varFromSnapshots(snapshots []domain.PoolSnapshot, confidence float64, positionUSD decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(snapshots) < 2 {
		return decimal.Zero, decimal.Zero
	}
	returns := make([]decimal.Decimal, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TVLUSD
		curr := snapshots[i].TVLUSD
		if prev.IsZero() {
			continue
		}
		returns = append(returns, curr.Sub(prev).Div(prev))
	}
	var1d := numeric.ValueAtRisk(returns, decimal.NewFromFloat(confidence)).Mul(positionUSD)
	var7d := var1d.Mul(decimal.NewFromFloat(math.Sqrt(7)))
	return var1d, var7d
}
