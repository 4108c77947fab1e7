package protocol

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/domain"
)

func TestRegistryByContract(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAaveAdapter(1))
	r.Register(NewCurveAdapter(1))

	_, err := r.ByContract(1, "0xabc")
	require.Error(t, err)

	adapters := r.For(FamilyLending, 1)
	require.Len(t, adapters, 1)
	assert.Equal(t, "aave", adapters[0].ProtocolName())
}

func TestHealthFactor(t *testing.T) {
	pos := domain.Position{
		CollateralUSD: decimal.NewFromInt(1000),
		DebtUSD:       decimal.NewFromInt(500),
	}
	hf := HealthFactor(pos, decimal.NewFromFloat(0.8))
	assert.InDelta(t, 1.6, hf, 0.0001)

	pos.DebtUSD = decimal.Zero
	assert.True(t, math.IsInf(HealthFactor(pos, decimal.NewFromFloat(0.8)), 1))
}

func TestLendingAdapterRiskScore(t *testing.T) {
	a := NewLendingAdapter("aave", 1, nil)
	score, err := a.RiskScore(context.Background(), []domain.Position{
		{CollateralUSD: decimal.NewFromInt(100), DebtUSD: decimal.NewFromInt(125)}, // hf = 0.64 -> liquidatable
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(100), score)
}

func TestPegDeviation(t *testing.T) {
	d := PegDeviation(decimal.NewFromFloat(1.02))
	assert.True(t, d.Sub(decimal.NewFromFloat(0.02)).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}

func TestStubAdapterReturnsEmpty(t *testing.T) {
	a := NewAaveAdapter(1)
	positions, err := a.FetchPositions(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.Nil(t, positions)
}
