package protocol

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// VaultAdapter prices ERC-4626-shaped yield vault shares by pricePerShare.
type VaultAdapter struct {
	protocol       string
	chainID        uint64
	vaults         []domain.Pool
	pricePerShare  map[string]decimal.Decimal
	strategyTag    map[string]string
}

// NewVaultAdapter builds an adapter over a set of ERC-4626 vaults.
func NewVaultAdapter(protocolName string, chainID uint64, vaults []domain.Pool, pricePerShare map[string]decimal.Decimal, strategyTag map[string]string) *VaultAdapter {
	return &VaultAdapter{protocol: protocolName, chainID: chainID, vaults: vaults, pricePerShare: pricePerShare, strategyTag: strategyTag}
}

func (a *VaultAdapter) ProtocolName() string { return a.protocol }
func (a *VaultAdapter) Family() Family       { return FamilyVault }
func (a *VaultAdapter) ChainID() uint64      { return a.chainID }

func (a *VaultAdapter) SupportsContract(addr string) bool {
	addr = strings.ToLower(addr)
	for _, v := range a.vaults {
		if strings.ToLower(v.Address) == addr {
			return true
		}
	}
	return false
}

func (a *VaultAdapter) FetchPositions(ctx context.Context, account string) ([]domain.Position, error) {
	return nil, errs.Newf(errs.Internal, "protocol.VaultAdapter.FetchPositions", "use ingestion's share-balance read for %s", account)
}

func (a *VaultAdapter) QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error) {
	pps, ok := a.pricePerShare[strings.ToLower(pos.PoolAddress)]
	if !ok {
		return decimal.Zero, errs.Newf(errs.NotFound, "protocol.VaultAdapter.QuoteValue", "no pricePerShare for %s", pos.PoolAddress)
	}
	return pos.Token0Amount.Mul(pps), nil
}

// StrategyTag returns the vault's declared strategy, empty if unknown.
func (a *VaultAdapter) StrategyTag(poolAddr string) string {
	return a.strategyTag[strings.ToLower(poolAddr)]
}

// RiskScore treats unclassified ("unknown") strategies as higher risk than
// vaults with a declared strategy tag, since opacity itself is a risk
// signal for a vault's depositors.
func (a *VaultAdapter) RiskScore(ctx context.Context, positions []domain.Position) (uint8, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	unknownCount := 0
	for _, pos := range positions {
		if a.StrategyTag(pos.PoolAddress) == "" {
			unknownCount++
		}
	}
	score := (unknownCount * 100) / len(positions)
	return uint8(score), nil
}
