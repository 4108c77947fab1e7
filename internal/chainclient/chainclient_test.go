package chainclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/errs"
)

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("not-an-address")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidInput, kind)

	addr, err := ParseAddress("0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", addr.Hex())
}

func TestIsValidENSName(t *testing.T) {
	assert.True(t, isValidENSName("vitalik.eth"))
	assert.False(t, isValidENSName("vitalik"))
	assert.False(t, isValidENSName(""))
	assert.False(t, isValidENSName("bad_char!.eth"))
}

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	b := NewCircuitBreaker(3, 10*time.Millisecond)
	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.State())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, "half_open", b.State())
	b.RecordSuccess()
	assert.Equal(t, "closed", b.State())
}

func TestHealthTrackerReportsOpenChains(t *testing.T) {
	h := NewHealthTracker(3, 10*time.Millisecond)
	assert.Empty(t, h.OpenChainIDs())

	b := h.BreakerFor(137)
	for i := 0; i < 3; i++ {
		b.Allow()
		b.RecordFailure()
	}
	assert.Equal(t, []uint64{137}, h.OpenChainIDs())

	// Chain 1 stays closed throughout; only the tripped chain is reported.
	h.BreakerFor(1)
	assert.Equal(t, []uint64{137}, h.OpenChainIDs())
}

func TestRetryPolicyRetriesTransientOnly(t *testing.T) {
	p := retryPolicy{baseDelay: time.Millisecond, factor: 2, maxAttempts: 3}

	attempts := 0
	err := p.do(context.Background(), errs.IsRetryable, func() error {
		attempts++
		return errs.New(errs.Transient, "test", errors.New("boom"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = p.do(context.Background(), errs.IsRetryable, func() error {
		attempts++
		return errs.New(errs.ContractRevert, "test", errors.New("revert"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
