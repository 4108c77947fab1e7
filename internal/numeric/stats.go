// Package numeric implements the engine's decimal arithmetic and rolling
// statistics kernel. All accumulation happens in arbitrary-precision
// decimal.Decimal; float64 only appears at a final, bounded output (a
// ratio in [0,1], or the one sqrt needed for standard deviation), mirroring
// internal/risk/var_calculator.go's InexactFloat64()+math.Sqrt pattern in
// the teacher repo.
package numeric

import (
	"errors"
	"math"
	"sort"

	"github.com/riskmonitor/engine/internal/errs"
	"github.com/shopspring/decimal"
)

// Mean returns the arithmetic mean of values, or zero for an empty slice.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// StdDev returns the sample standard deviation (n-1 denominator). Series
// shorter than two points return zero, matching
// original_source/src/utils/math.rs::standard_deviation exactly.
func StdDev(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	mean := Mean(values)
	varianceSum := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		varianceSum = varianceSum.Add(diff.Mul(diff))
	}
	variance := varianceSum.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return sqrtDecimal(variance)
}

// sqrtDecimal takes the square root of a non-negative decimal by dropping
// to float64 for the sqrt step only, then lifting the result back into
// decimal. This mirrors the teacher's var_calculator.go, which does the
// same InexactFloat64()->math.Sqrt->decimal.NewFromFloat round trip.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	f, _ := d.Float64()
	if f <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(f))
}

// MovingAverage returns the simple moving average over a sliding window of
// the given size. An empty result is returned when there are fewer values
// than the window (original_source behavior); window==0 is an invalid
// input and returns an error rather than dividing by zero.
func MovingAverage(values []decimal.Decimal, window int) ([]decimal.Decimal, error) {
	if window == 0 {
		return nil, errs.New(errs.InvalidInput, "numeric.MovingAverage", errors.New("window must be greater than zero"))
	}
	if len(values) < window {
		return []decimal.Decimal{}, nil
	}

	result := make([]decimal.Decimal, 0, len(values)-window+1)
	windowLen := decimal.NewFromInt(int64(window))
	for i := 0; i+window <= len(values); i++ {
		sum := decimal.Zero
		for _, v := range values[i : i+window] {
			sum = sum.Add(v)
		}
		result = append(result, sum.Div(windowLen))
	}
	return result, nil
}

// Correlation returns the Pearson correlation coefficient between two
// equal-length series of at least two points. Mirrors
// original_source/src/utils/math.rs::correlation, including its
// denominator-zero -> 0 fallback.
func Correlation(x, y []decimal.Decimal) (decimal.Decimal, error) {
	if len(x) != len(y) || len(x) < 2 {
		return decimal.Zero, errs.New(errs.InvalidInput, "numeric.Correlation", errors.New("series must have equal length and at least 2 values"))
	}

	meanX := Mean(x)
	meanY := Mean(y)

	numerator := decimal.Zero
	sumSqX := decimal.Zero
	sumSqY := decimal.Zero
	for i := range x {
		dx := x[i].Sub(meanX)
		dy := y[i].Sub(meanY)
		numerator = numerator.Add(dx.Mul(dy))
		sumSqX = sumSqX.Add(dx.Mul(dx))
		sumSqY = sumSqY.Add(dy.Mul(dy))
	}

	product := sumSqX.Mul(sumSqY)
	denominator := sqrtDecimal(product)
	if denominator.IsZero() {
		return decimal.Zero, nil
	}
	return numerator.Div(denominator), nil
}

// ValueAtRisk computes historical-simulation VaR: sort returns ascending,
// take the value at index floor((1-confidence)*n), return its absolute
// value. Matches original_source/src/utils/math.rs::value_at_risk and
// internal/risk/var_calculator.go's calculateHistoricalVaR percentile index.
func ValueAtRisk(returns []decimal.Decimal, confidenceLevel decimal.Decimal) decimal.Decimal {
	if len(returns) == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, len(returns))
	copy(sorted, returns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	oneMinusConfidence := decimal.NewFromInt(1).Sub(confidenceLevel)
	idxDecimal := oneMinusConfidence.Mul(decimal.NewFromInt(int64(len(returns))))
	index := int(idxDecimal.IntPart())
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index].Abs()
}

// PercentageChange returns (new-old)/old * 100. Zero base value is an
// invalid input, matching original_source's percentage_change.
func PercentageChange(oldValue, newValue decimal.Decimal) (decimal.Decimal, error) {
	if oldValue.IsZero() {
		return decimal.Zero, errs.New(errs.InvalidInput, "numeric.PercentageChange", errors.New("cannot calculate percentage change with zero base value"))
	}
	change := newValue.Sub(oldValue).Div(oldValue).Mul(decimal.NewFromInt(100))
	return change, nil
}

