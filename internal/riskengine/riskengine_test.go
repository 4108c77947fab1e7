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

func TestRegistryComputeDispatchesByKind(t *testing.T) {
	r := NewRegistry()
	weights := config.RiskWeightsConfig{
		LPImpermanentLoss: 0.30, LPPriceImpact: 0.20, LPVolatility: 0.20,
		LPCorrelation: 0.15, LPLiquidity: 0.15, VaRConfidence: 0.95,
	}

	position := domain.Position{
		Kind:      domain.PoolKindCLAMM,
		TickLower: -100, TickUpper: 100,
		Liquidity: decimal.NewFromInt(10),
	}
	pool := domain.Pool{
		Kind: domain.PoolKindCLAMM, Tick: 0,
		Liquidity: decimal.NewFromInt(1000), TVLUSD: decimal.NewFromInt(100000),
	}

	metrics, err := r.Compute(context.Background(), position, pool, History{}, weights)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, metrics.OverallRiskScore, 0.0)
	assert.LessOrEqual(t, metrics.OverallRiskScore, 1.0)
}

func TestLendingHealthFactorLiquidationProximity(t *testing.T) {
	r := NewRegistry()
	weights := config.RiskWeightsConfig{VaRConfidence: 0.95}
	// debt 1000, collateral 1100 at a liquidation factor of 0.85 ->
	// health_factor = 1100*0.85/1000 = 0.935, liquidation_proximity = 1-hf.
	position := domain.Position{
		Kind:          domain.PoolKindLending,
		CollateralUSD: decimal.NewFromInt(1100),
		DebtUSD:       decimal.NewFromInt(1000),
	}
	pool := domain.Pool{
		Kind:       domain.PoolKindLending,
		Collateral: []domain.CollateralAsset{{LiquidationFactor: decimal.NewFromFloat(0.85)}},
	}

	metrics, err := r.Compute(context.Background(), position, pool, History{}, weights)
	require.NoError(t, err)
	assert.InDelta(t, 0.065, metrics.PriceImpact, 0.001, "liquidation proximity should be the graduated 1-health_factor value, not a flat 1.0")
}

func TestComposeWrapped(t *testing.T) {
	layers := []RiskMetrics{
		{OverallRiskScore: 0.2, Confidence: 0.9},
		{OverallRiskScore: 0.8, Confidence: 0.5},
	}
	composed, err := ComposeWrapped(layers, []int{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, (0.2*1+0.8*2)/3, composed.OverallRiskScore, 0.0001)
	assert.InDelta(t, 0.5, composed.Confidence, 0.0001)
}

func TestSeverityAcrossLayers(t *testing.T) {
	got := SeverityAcrossLayers([]domain.Severity{domain.SeverityLow, domain.SeverityHigh, domain.SeverityMedium})
	assert.Equal(t, domain.SeverityHigh, got)
}

func TestComputeCrossChainRisk(t *testing.T) {
	cfg := domain.DefaultCrossChainRiskConfig()
	risk := ComputeCrossChainRisk("pos-1", []domain.BridgeRisk{{RiskScore: 0.4}}, []domain.ChainRisk{{RiskScore: 0.2}}, nil, 0.1, false, cfg)
	assert.GreaterOrEqual(t, risk.OverallScore, 0.0)
	assert.LessOrEqual(t, risk.OverallScore, 1.0)
}
