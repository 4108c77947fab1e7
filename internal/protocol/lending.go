package protocol

import (
	"context"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// LendingAdapter prices Aave/Compound-shaped lending positions: supplied
// collateral, borrowed debt, and the resulting health factor.
type LendingAdapter struct {
	protocol string
	chainID  uint64
	markets  []domain.Pool
}

// NewLendingAdapter builds an adapter over a known set of lending markets.
func NewLendingAdapter(protocolName string, chainID uint64, markets []domain.Pool) *LendingAdapter {
	return &LendingAdapter{protocol: protocolName, chainID: chainID, markets: markets}
}

func (a *LendingAdapter) ProtocolName() string { return a.protocol }
func (a *LendingAdapter) Family() Family       { return FamilyLending }
func (a *LendingAdapter) ChainID() uint64      { return a.chainID }

func (a *LendingAdapter) SupportsContract(addr string) bool {
	addr = strings.ToLower(addr)
	for _, m := range a.markets {
		if strings.ToLower(m.Address) == addr {
			return true
		}
	}
	return false
}

// FetchPositions is left to the ingestion layer's account-data polling
// (it needs per-account collateral/debt RPC reads this package does not
// own); this adapter prices and scores positions the store already has.
func (a *LendingAdapter) FetchPositions(ctx context.Context, account string) ([]domain.Position, error) {
	return nil, errs.Newf(errs.Internal, "protocol.LendingAdapter.FetchPositions", "use ingestion's per-account market read for %s", account)
}

func (a *LendingAdapter) QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error) {
	return pos.CollateralUSD.Sub(pos.DebtUSD), nil
}

// HealthFactor returns collateral*liquidationFactor/debt, +Inf when debt is
// zero (an unleveraged position cannot be liquidated).
func HealthFactor(pos domain.Position, liquidationFactor decimal.Decimal) float64 {
	if pos.DebtUSD.IsZero() {
		return math.Inf(1)
	}
	weighted := pos.CollateralUSD.Mul(liquidationFactor)
	hf, _ := weighted.Div(pos.DebtUSD).Float64()
	return hf
}

// RiskScore maps the worst (lowest) health factor across positions onto a
// 0-100 scale: HF<=1 is already liquidatable (100), HF>=2 is safe (0).
func (a *LendingAdapter) RiskScore(ctx context.Context, positions []domain.Position) (uint8, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	worst := math.Inf(1)
	for _, pos := range positions {
		hf := HealthFactor(pos, decimal.NewFromFloat(0.8))
		if hf < worst {
			worst = hf
		}
	}
	switch {
	case math.IsInf(worst, 1):
		return 0, nil
	case worst <= 1.0:
		return 100, nil
	case worst >= 2.0:
		return 0, nil
	default:
		return uint8((2.0 - worst) * 100), nil
	}
}
