package riskengine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
)

func TestCLAMMImpermanentLossConcentratedRange(t *testing.T) {
	r := NewRegistry()
	weights := config.RiskWeightsConfig{
		LPImpermanentLoss: 0.30, LPPriceImpact: 0.20, LPVolatility: 0.20,
		LPCorrelation: 0.15, LPLiquidity: 0.15, VaRConfidence: 0.95,
	}

	// Range [-1000,1000], entry tick approximated at the range midpoint
	// (0), current tick 500: a narrow range amplifies IL well past the
	// full-range approximation.
	position := domain.Position{
		Kind:      domain.PoolKindCLAMM,
		TickLower: -1000, TickUpper: 1000,
		Liquidity: decimal.NewFromInt(10),
	}
	pool := domain.Pool{
		Kind: domain.PoolKindCLAMM, Tick: 500,
		Liquidity: decimal.NewFromInt(1000), TVLUSD: decimal.NewFromInt(100000),
	}

	metrics, err := r.Compute(context.Background(), position, pool, History{}, weights)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, metrics.ImpermanentLoss, 0.006)
	assert.LessOrEqual(t, metrics.ImpermanentLoss, 0.008)
}

func TestCLAMMOutOfRangeIsExposureNotIL(t *testing.T) {
	got := outOfRangeExposure(-1000, 1000, 1500)
	assert.InDelta(t, 0.25, got, 0.0001)

	il := impermanentLossFraction(-1000, 1000, 500)
	assert.Greater(t, il, 0.0)
	assert.Less(t, il, 1.0)
}

func TestSqrtPriceAtTickMonotonic(t *testing.T) {
	assert.Less(t, sqrtPriceAtTick(-1000), sqrtPriceAtTick(0))
	assert.Less(t, sqrtPriceAtTick(0), sqrtPriceAtTick(1000))
}
