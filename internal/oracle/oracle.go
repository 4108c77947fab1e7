// Package oracle consolidates multiple price sources into a validated,
// per-token USD price with a confidence score: collect quotes, drop stale
// or invalid ones, take the median after outlier rejection, and score the
// agreement. Results are not cached. Adapted from the teacher's
// internal/web3/risk_assessment.go flow (generalized here to price
// validation rather than transaction risk).
package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/internal/numeric"
)

// Quote is a single price observation from one source.
type Quote struct {
	PriceUSD decimal.Decimal
	Source   string
	Age      time.Duration
	Valid    bool
}

// Source produces quotes for a token; on-chain feed and off-chain REST
// sources both implement this.
type Source interface {
	Name() string
	Quote(ctx context.Context, token domain.Token) (Quote, error)
}

// ValidatedPrice is the oracle's output for one token.
type ValidatedPrice struct {
	Token      domain.Token
	USD        decimal.Decimal
	Confidence float64
	Timestamp  time.Time
	LowConfidence bool
}

// Oracle runs the 5-step validation pipeline over a fixed set of sources.
type Oracle struct {
	sources []Source
	cfg     config.OracleConfig
}

// New builds an oracle over the given sources.
func New(sources []Source, cfg config.OracleConfig) *Oracle {
	return &Oracle{sources: sources, cfg: cfg}
}

// Validate runs: collect -> reject stale/invalid -> low-confidence gate ->
// median + outlier rejection -> confidence scoring.
func (o *Oracle) Validate(ctx context.Context, token domain.Token) (ValidatedPrice, error) {
	quotes := o.collect(ctx, token)

	fresh := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if !q.Valid || q.Age > o.cfg.MaxStaleness {
			continue
		}
		fresh = append(fresh, q)
	}

	if len(fresh) < o.cfg.MinSources {
		if len(fresh) == 0 {
			return ValidatedPrice{}, errs.Newf(errs.Transient, "oracle.Validate", "no valid price sources for %s", token.Key())
		}
		return ValidatedPrice{
			Token:         token,
			USD:           medianOf(fresh),
			Confidence:    0.3,
			Timestamp:     time.Now(),
			LowConfidence: true,
		}, nil
	}

	median := medianOf(fresh)
	survivors := rejectOutliers(fresh, median, o.cfg.MaxDeviation)
	median = medianOf(survivors)

	prices := make([]decimal.Decimal, len(survivors))
	for i, q := range survivors {
		prices[i] = q.PriceUSD
	}
	stddev := numeric.StdDev(prices)

	confidence := 1.0
	if !median.IsZero() {
		ratio, _ := stddev.Div(median.Abs()).Float64()
		confidence = 1 - ratio
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ValidatedPrice{
		Token:      token,
		USD:        median,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}, nil
}

func (o *Oracle) collect(ctx context.Context, token domain.Token) []Quote {
	quotes := make([]Quote, 0, len(o.sources))
	for _, s := range o.sources {
		q, err := s.Quote(ctx, token)
		if err != nil {
			continue
		}
		q.Source = s.Name()
		quotes = append(quotes, q)
	}
	return quotes
}

func medianOf(quotes []Quote) decimal.Decimal {
	if len(quotes) == 0 {
		return decimal.Zero
	}
	prices := make([]decimal.Decimal, len(quotes))
	for i, q := range quotes {
		prices[i] = q.PriceUSD
	}
	return medianDecimal(prices)
}

func medianDecimal(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// rejectOutliers drops quotes whose price deviates from the median by more
// than maxDeviation (a fraction, e.g. 0.10 for 10%).
func rejectOutliers(quotes []Quote, median decimal.Decimal, maxDeviation float64) []Quote {
	if median.IsZero() {
		return quotes
	}
	threshold := decimal.NewFromFloat(maxDeviation)
	survivors := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		deviation := q.PriceUSD.Sub(median).Div(median).Abs()
		if deviation.LessThanOrEqual(threshold) {
			survivors = append(survivors, q)
		}
	}
	if len(survivors) == 0 {
		return quotes
	}
	return survivors
}
