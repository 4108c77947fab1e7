package protocol

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// LiquidStakingAdapter prices Lido/Rocket-Pool-shaped staked positions by
// exchange rate against the underlying asset, with peg-deviation risk.
type LiquidStakingAdapter struct {
	protocol     string
	chainID      uint64
	vaults       []domain.Pool
	exchangeRate map[string]decimal.Decimal // pool address (lower) -> staked/underlying rate
}

// NewLiquidStakingAdapter builds an adapter over a set of staking vaults
// and their current exchange rates.
func NewLiquidStakingAdapter(protocolName string, chainID uint64, vaults []domain.Pool, exchangeRate map[string]decimal.Decimal) *LiquidStakingAdapter {
	return &LiquidStakingAdapter{protocol: protocolName, chainID: chainID, vaults: vaults, exchangeRate: exchangeRate}
}

func (a *LiquidStakingAdapter) ProtocolName() string { return a.protocol }
func (a *LiquidStakingAdapter) Family() Family       { return FamilyLiquidStaking }
func (a *LiquidStakingAdapter) ChainID() uint64      { return a.chainID }

func (a *LiquidStakingAdapter) SupportsContract(addr string) bool {
	addr = strings.ToLower(addr)
	for _, v := range a.vaults {
		if strings.ToLower(v.Address) == addr {
			return true
		}
	}
	return false
}

func (a *LiquidStakingAdapter) FetchPositions(ctx context.Context, account string) ([]domain.Position, error) {
	return nil, errs.Newf(errs.Internal, "protocol.LiquidStakingAdapter.FetchPositions", "use ingestion's staked-balance read for %s", account)
}

func (a *LiquidStakingAdapter) QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error) {
	rate, ok := a.exchangeRate[strings.ToLower(pos.PoolAddress)]
	if !ok {
		return decimal.Zero, errs.Newf(errs.NotFound, "protocol.LiquidStakingAdapter.QuoteValue", "no exchange rate for %s", pos.PoolAddress)
	}
	return pos.Token0Amount.Mul(rate), nil
}

// PegDeviation returns how far the exchange rate has drifted from parity
// (1:1), as a fraction: 0 means no deviation.
func PegDeviation(rate decimal.Decimal) decimal.Decimal {
	return rate.Sub(decimal.NewFromInt(1)).Abs()
}

// RiskScore maps peg deviation onto a 0-100 scale; 5% deviation or more is
// treated as maximal risk for this family.
func (a *LiquidStakingAdapter) RiskScore(ctx context.Context, positions []domain.Position) (uint8, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	var maxDeviation decimal.Decimal
	for _, pos := range positions {
		rate, ok := a.exchangeRate[strings.ToLower(pos.PoolAddress)]
		if !ok {
			continue
		}
		d := PegDeviation(rate)
		if d.GreaterThan(maxDeviation) {
			maxDeviation = d
		}
	}
	capped := maxDeviation.Div(decimal.NewFromFloat(0.05)).Mul(decimal.NewFromInt(100))
	if capped.GreaterThan(decimal.NewFromInt(100)) {
		return 100, nil
	}
	f, _ := capped.Float64()
	if f < 0 {
		f = 0
	}
	return uint8(f), nil
}
