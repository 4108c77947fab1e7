package numeric

import (
	"testing"

	"github.com/riskmonitor/engine/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

func TestMean(t *testing.T) {
	assert.True(t, Mean(nil).Equal(decimal.Zero))
	assert.True(t, Mean(decs("1", "2", "3")).Equal(dec("2")))
}

func TestPercentageChange(t *testing.T) {
	got, err := PercentageChange(dec("100"), dec("110"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("10")), "got %s", got)

	_, err = PercentageChange(decimal.Zero, dec("10"))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidInput, kind)
}

func TestMovingAverage(t *testing.T) {
	result, err := MovingAverage(decs("1", "2", "3", "4", "5"), 3)
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.True(t, result[0].Equal(dec("2")), "got %s", result[0])
	assert.True(t, result[1].Equal(dec("3")))
	assert.True(t, result[2].Equal(dec("4")))

	result, err = MovingAverage(decs("1", "2"), 5)
	require.NoError(t, err)
	assert.Empty(t, result)

	_, err = MovingAverage(decs("1", "2"), 0)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidInput, kind)
}

func TestStdDev(t *testing.T) {
	assert.True(t, StdDev(decs("5")).Equal(decimal.Zero))
	assert.True(t, StdDev(nil).Equal(decimal.Zero))

	got := StdDev(decs("2", "4", "4", "4", "5", "5", "7", "9"))
	want := dec("2.138089935299395")
	diff := got.Sub(want).Abs()
	assert.True(t, diff.LessThan(dec("0.0001")), "got %s want %s", got, want)
}

func TestCorrelation(t *testing.T) {
	_, err := Correlation(decs("1", "2"), decs("1"))
	require.Error(t, err)

	got, err := Correlation(decs("1", "2", "3"), decs("2", "4", "6"))
	require.NoError(t, err)
	assert.True(t, got.Sub(dec("1")).Abs().LessThan(dec("0.0001")), "got %s", got)

	got, err = Correlation(decs("1", "1", "1"), decs("1", "2", "3"))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.Zero))
}

func TestValueAtRisk(t *testing.T) {
	assert.True(t, ValueAtRisk(nil, dec("0.95")).Equal(decimal.Zero))

	returns := decs("-0.10", "-0.05", "-0.02", "0.00", "0.01", "0.02", "0.03", "0.04", "0.05", "0.06")
	got := ValueAtRisk(returns, dec("0.95"))
	assert.True(t, got.GreaterThanOrEqual(decimal.Zero))
}

func TestQ64x96RoundTrip(t *testing.T) {
	for _, tick := range []int32{0, 100, -100, 887272, -887272} {
		q := TickToSqrtPriceX96(tick)
		gotTick := SqrtPriceX96ToTick(q)
		diff := gotTick - tick
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int32(1), "tick %d round-tripped to %d", tick, gotTick)
	}
}

func TestQ64x96Price(t *testing.T) {
	q := TickToSqrtPriceX96(0)
	price := q.Price(18, 18)
	diff := price.Sub(dec("1")).Abs()
	assert.True(t, diff.LessThan(dec("0.01")), "got %s", price)
}
