package query

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/domain"
)

type fakePositionRepo struct {
	byUser []domain.Position
}

func (f *fakePositionRepo) Upsert(ctx context.Context, p domain.Position) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakePositionRepo) Get(ctx context.Context, id uuid.UUID) (domain.Position, error) {
	return domain.Position{}, nil
}
func (f *fakePositionRepo) ListByUser(ctx context.Context, user string) ([]domain.Position, error) {
	return f.byUser, nil
}
func (f *fakePositionRepo) ListByPool(ctx context.Context, chainID uint64, poolAddress string) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakePositionRepo) MarkZeroLiquidity(ctx context.Context, id uuid.UUID, threshold int) (bool, error) {
	return false, nil
}

type fakeAlertRepo struct {
	byUser []domain.Alert
}

func (f *fakeAlertRepo) Insert(ctx context.Context, a domain.Alert) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeAlertRepo) Resolve(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeAlertRepo) OpenForThreshold(ctx context.Context, thresholdID uuid.UUID, positionRef string) (domain.Alert, error) {
	return domain.Alert{}, assert.AnError
}
func (f *fakeAlertRepo) ListByUser(ctx context.Context, user string, includeResolved bool) ([]domain.Alert, error) {
	return f.byUser, nil
}

type fakeChainHealth struct {
	open []uint64
}

func (f *fakeChainHealth) OpenChainIDs() []uint64 { return f.open }

// TestChainOutageDegradesWithoutFailing exercises the chain-137-outage
// scenario: a circuit opens on one chain, but queries for positions
// spanning that chain and others keep succeeding, flagged degraded with
// the outage chain named.
func TestChainOutageDegradesWithoutFailing(t *testing.T) {
	positions := &fakePositionRepo{byUser: []domain.Position{
		{ChainID: 1}, {ChainID: 10}, {ChainID: 137}, {ChainID: 42161},
	}}
	health := &fakeChainHealth{open: []uint64{137}}
	svc := NewService(positions, &fakeAlertRepo{}, health)

	result, err := svc.ListPositions(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, result.Positions, 4, "positions from all chains are still returned")
	assert.True(t, result.Degraded)
	assert.Equal(t, []uint64{137}, result.MissingChains)
}

func TestNoOutageIsNotDegraded(t *testing.T) {
	positions := &fakePositionRepo{byUser: []domain.Position{{ChainID: 1}, {ChainID: 10}}}
	svc := NewService(positions, &fakeAlertRepo{}, &fakeChainHealth{})

	result, err := svc.ListPositions(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.MissingChains)
}

func TestListAlertsCarriesSameDegradedEnvelope(t *testing.T) {
	positions := &fakePositionRepo{byUser: []domain.Position{{ChainID: 137}}}
	alerts := &fakeAlertRepo{byUser: []domain.Alert{{Metric: "health_factor"}}}
	health := &fakeChainHealth{open: []uint64{137}}
	svc := NewService(positions, alerts, health)

	result, err := svc.ListAlerts(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Len(t, result.Alerts, 1)
	assert.True(t, result.Degraded)
	assert.Equal(t, []uint64{137}, result.MissingChains)
}

func TestNilHealthNeverDegrades(t *testing.T) {
	positions := &fakePositionRepo{byUser: []domain.Position{{ChainID: 137}}}
	svc := NewService(positions, &fakeAlertRepo{}, nil)

	result, err := svc.ListPositions(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, result.Degraded)
}
