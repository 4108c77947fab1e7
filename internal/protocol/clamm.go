package protocol

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/chainclient"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// slot0ABI exposes the single read Uniswap-v3-shaped pools need: the
// packed sqrtPriceX96/tick tuple. Mirrors the teacher's minimal
// single-purpose ABI constants (erc20ABIJSON).
const slot0ABI = `[{"inputs":[],"name":"slot0","outputs":[
{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
{"internalType":"int24","name":"tick","type":"int24"},
{"internalType":"uint16","name":"observationIndex","type":"uint16"},
{"internalType":"uint16","name":"observationCardinality","type":"uint16"},
{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
{"internalType":"uint8","name":"feeProtocol","type":"uint8"},
{"internalType":"bool","name":"unlocked","type":"bool"}],
"stateMutability":"view","type":"function"}]`

// CLAMMAdapter reads concentrated-liquidity pool state (slot0, liquidity)
// for a single chain. Position enumeration comes from a positions store
// keyed by owner, since NFT position manager enumeration needs indexed
// event logs the read-only client does not have in this package.
type CLAMMAdapter struct {
	protocol string
	chainID  uint64
	client   chainclient.Client
	pools    []domain.Pool
}

// NewCLAMMAdapter builds an adapter over a known set of pools on one chain.
func NewCLAMMAdapter(protocolName string, chainID uint64, client chainclient.Client, pools []domain.Pool) *CLAMMAdapter {
	return &CLAMMAdapter{protocol: protocolName, chainID: chainID, client: client, pools: pools}
}

func (a *CLAMMAdapter) ProtocolName() string { return a.protocol }
func (a *CLAMMAdapter) Family() Family       { return FamilyCLAMM }
func (a *CLAMMAdapter) ChainID() uint64      { return a.chainID }

func (a *CLAMMAdapter) SupportsContract(addr string) bool {
	addr = strings.ToLower(addr)
	for _, p := range a.pools {
		if strings.ToLower(p.Address) == addr {
			return true
		}
	}
	return false
}

// FetchPositions is intentionally unimplemented here: enumerating a
// wallet's NFT-based LP positions requires the ingestion layer's indexed
// store of mint/transfer events, not a bare read-only RPC client. Callers
// read positions from internal/store and use this adapter only to refresh
// pool-side state (ReadPoolState) and to score existing positions.
func (a *CLAMMAdapter) FetchPositions(ctx context.Context, account string) ([]domain.Position, error) {
	return nil, errs.New(errs.Internal, "protocol.CLAMMAdapter.FetchPositions",
		errors.New("direct position enumeration requires the ingestion event index"))
}

// ReadPoolState refreshes sqrtPriceX96/tick for one pool via an on-chain
// slot0 call.
func (a *CLAMMAdapter) ReadPoolState(ctx context.Context, poolAddr string) (*big.Int, int32, error) {
	addr, err := chainclient.ParseAddress(poolAddr)
	if err != nil {
		return nil, 0, err
	}
	res, err := a.client.Call(ctx, addr, slot0ABI, "slot0")
	if err != nil {
		return nil, 0, err
	}
	if len(res.Values) < 2 {
		return nil, 0, errs.Newf(errs.Decoding, "protocol.CLAMMAdapter.ReadPoolState", "slot0 returned %d values, want at least 2", len(res.Values))
	}
	sqrtPriceX96, ok := res.Values[0].(*big.Int)
	if !ok {
		return nil, 0, errs.Newf(errs.Decoding, "protocol.CLAMMAdapter.ReadPoolState", "slot0 sqrtPriceX96 has unexpected type %T", res.Values[0])
	}
	tick, ok := res.Values[1].(*big.Int)
	if !ok {
		return nil, 0, errs.Newf(errs.Decoding, "protocol.CLAMMAdapter.ReadPoolState", "slot0 tick has unexpected type %T", res.Values[1])
	}
	return sqrtPriceX96, int32(tick.Int64()), nil
}

// QuoteValue prices a CL-AMM position in USD using the pool's current TVL
// and the position's share of in-range liquidity.
func (a *CLAMMAdapter) QuoteValue(ctx context.Context, pos domain.Position) (decimal.Decimal, error) {
	for _, p := range a.pools {
		if !strings.EqualFold(p.Address, pos.PoolAddress) {
			continue
		}
		if pos.Liquidity.IsZero() || p.Liquidity.IsZero() {
			return decimal.Zero, nil
		}
		share := pos.Liquidity.Div(p.Liquidity)
		return share.Mul(p.TVLUSD), nil
	}
	return decimal.Zero, errs.Newf(errs.NotFound, "protocol.CLAMMAdapter.QuoteValue", "pool %s not tracked by this adapter", pos.PoolAddress)
}

// RiskScore returns a coarse 0-100 liquidity-depth score: positions in
// pools with thin liquidity relative to their own size score higher risk.
// Finer risk composition (IL, price impact, volatility, correlation) lives
// in internal/riskengine; this is the adapter's own cheap self-assessment.
func (a *CLAMMAdapter) RiskScore(ctx context.Context, positions []domain.Position) (uint8, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	var totalShare decimal.Decimal
	for _, pos := range positions {
		for _, p := range a.pools {
			if strings.EqualFold(p.Address, pos.PoolAddress) && !p.Liquidity.IsZero() {
				totalShare = totalShare.Add(pos.Liquidity.Div(p.Liquidity))
			}
		}
	}
	avgShare := totalShare.Div(decimal.NewFromInt(int64(len(positions))))
	score := avgShare.Mul(decimal.NewFromInt(100))
	if score.GreaterThan(decimal.NewFromInt(100)) {
		return 100, nil
	}
	f, _ := score.Float64()
	if f < 0 {
		return 0, nil
	}
	return uint8(f), nil
}
