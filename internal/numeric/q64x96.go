package numeric

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// q96 is 2^96, the fixed-point scale Uniswap-v3-style pools encode
// sqrtPriceX96 in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// Q64x96 wraps a Q64.96 fixed-point sqrt-price as reported on-chain by
// concentrated-liquidity pools.
type Q64x96 struct {
	raw *big.Int
}

// NewQ64x96 wraps a raw on-chain sqrtPriceX96 value.
func NewQ64x96(raw *big.Int) Q64x96 {
	return Q64x96{raw: new(big.Int).Set(raw)}
}

// Raw returns the underlying fixed-point integer.
func (q Q64x96) Raw() *big.Int { return new(big.Int).Set(q.raw) }

// Price converts a sqrtPriceX96 into token1/token0 price as a decimal,
// accounting for each token's decimals: price = (raw/2^96)^2 * 10^(d0-d1).
func (q Q64x96) Price(token0Decimals, token1Decimals uint8) decimal.Decimal {
	ratio := new(big.Rat).SetFrac(q.raw, q96)
	f, _ := ratio.Float64()
	price := f * f

	scale := math.Pow(10, float64(int(token0Decimals)-int(token1Decimals)))
	return decimal.NewFromFloat(price * scale)
}

// TickToSqrtPriceX96 computes the canonical Uniswap v3 sqrt price for a
// tick: sqrtPrice = 1.0001^(tick/2), scaled by 2^96. Ticks are expected in
// [-887272, 887272] (the range go-ethereum ABI decoders will already have
// validated upstream); out-of-range ticks return a zero value rather than
// erroring, since callers treat tick/price jointly and the pool record's
// own validity already gates this.
func TickToSqrtPriceX96(tick int32) Q64x96 {
	if tick < -887272 || tick > 887272 {
		return Q64x96{raw: new(big.Int)}
	}
	sqrtPrice := math.Pow(1.0001, float64(tick)/2.0)
	scaled := new(big.Float).Mul(big.NewFloat(sqrtPrice), new(big.Float).SetInt(q96))
	raw, _ := scaled.Int(nil)
	return Q64x96{raw: raw}
}

// SqrtPriceX96ToTick inverts TickToSqrtPriceX96 via the closed-form
// tick = floor(2*log_1.0001(sqrtPrice)).
func SqrtPriceX96ToTick(q Q64x96) int32 {
	ratio := new(big.Rat).SetFrac(q.raw, q96)
	sqrtPrice, _ := ratio.Float64()
	if sqrtPrice <= 0 {
		return 0
	}
	tick := 2 * math.Log(sqrtPrice) / math.Log(1.0001)
	return int32(math.Floor(tick))
}
