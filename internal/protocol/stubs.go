package protocol

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
)

// stubAdapter satisfies the Adapter contract for protocols the registry
// names but does not yet implement on-chain reads for, mirroring the
// teacher's CurveProtocol/BalancerProtocol bodies (method set present,
// behavior a placeholder). FetchPositions/QuoteValue/RiskScore all return
// zero-value "nothing found" results rather than an error, so a caller
// iterating the registry's adapters does not need special-case handling
// for protocols pending full integration.
type stubAdapter struct {
	protocol string
	family   Family
	chainID  uint64
}

// NewAaveAdapter is a specified-but-unimplemented stub; Aave's account-data
// contract shape differs enough from the generic LendingAdapter's
// single-market model that it needs its own reserve-enumeration logic,
// tracked as follow-on work.
func NewAaveAdapter(chainID uint64) Adapter { return &stubAdapter{protocol: "aave", family: FamilyLending, chainID: chainID} }

// NewCompoundAdapter is a specified-but-unimplemented stub for the same
// reason as NewAaveAdapter (Compound's cToken exchange-rate model is not
// the generic LendingAdapter's shape).
func NewCompoundAdapter(chainID uint64) Adapter { return &stubAdapter{protocol: "compound", family: FamilyLending, chainID: chainID} }

// NewCurveAdapter is a specified-but-unimplemented stub; Curve's stable-swap
// invariant pools need their own QuoteValue math distinct from the
// concentrated-liquidity CLAMMAdapter.
func NewCurveAdapter(chainID uint64) Adapter { return &stubAdapter{protocol: "curve", family: FamilyCLAMM, chainID: chainID} }

func (s *stubAdapter) ProtocolName() string { return s.protocol }
func (s *stubAdapter) Family() Family       { return s.family }
func (s *stubAdapter) ChainID() uint64      { return s.chainID }
func (s *stubAdapter) SupportsContract(addr string) bool { return false }

func (s *stubAdapter) FetchPositions(ctx context.Context, account string) ([]domain.Position, error) {
	return nil, nil
}

func (s *stubAdapter) QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAdapter) RiskScore(ctx context.Context, positions []domain.Position) (uint8, error) {
	return 0, nil
}
