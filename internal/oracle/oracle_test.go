package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
)

type fakeSource struct {
	name  string
	quote Quote
	err   error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Quote(ctx context.Context, token domain.Token) (Quote, error) {
	return f.quote, f.err
}

func defaultCfg() config.OracleConfig {
	return config.OracleConfig{MinSources: 2, MaxStaleness: time.Hour, MaxDeviation: 0.10}
}

func TestValidateLowConfidenceBelowMinSources(t *testing.T) {
	o := New([]Source{
		&fakeSource{name: "a", quote: Quote{PriceUSD: decimal.NewFromInt(100), Valid: true}},
	}, defaultCfg())

	got, err := o.Validate(context.Background(), domain.Token{ChainID: 1, Address: "0xabc"})
	require.NoError(t, err)
	assert.True(t, got.LowConfidence)
	assert.InDelta(t, 0.3, got.Confidence, 0.0001)
}

func TestValidateRejectsOutliers(t *testing.T) {
	o := New([]Source{
		&fakeSource{name: "a", quote: Quote{PriceUSD: decimal.NewFromInt(100), Valid: true}},
		&fakeSource{name: "b", quote: Quote{PriceUSD: decimal.NewFromInt(101), Valid: true}},
		&fakeSource{name: "c", quote: Quote{PriceUSD: decimal.NewFromInt(1000), Valid: true}},
	}, defaultCfg())

	got, err := o.Validate(context.Background(), domain.Token{ChainID: 1, Address: "0xabc"})
	require.NoError(t, err)
	assert.False(t, got.LowConfidence)
	assert.True(t, got.USD.LessThan(decimal.NewFromInt(200)), "median should exclude the 1000 outlier, got %s", got.USD)
}

func TestValidateRejectsStale(t *testing.T) {
	o := New([]Source{
		&fakeSource{name: "a", quote: Quote{PriceUSD: decimal.NewFromInt(100), Valid: true, Age: 2 * time.Hour}},
		&fakeSource{name: "b", quote: Quote{PriceUSD: decimal.NewFromInt(101), Valid: true}},
	}, defaultCfg())

	got, err := o.Validate(context.Background(), domain.Token{ChainID: 1, Address: "0xabc"})
	require.NoError(t, err)
	assert.True(t, got.LowConfidence, "stale quote should be dropped, leaving only one source")
}

func TestValidateNoSourcesErrors(t *testing.T) {
	o := New(nil, defaultCfg())
	_, err := o.Validate(context.Background(), domain.Token{ChainID: 1, Address: "0xabc"})
	require.Error(t, err)
}
