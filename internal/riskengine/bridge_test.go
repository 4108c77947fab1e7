package riskengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/streambus"
)

type fakeSnapshotRepo struct {
	snaps []domain.PoolSnapshot
}

func (f *fakeSnapshotRepo) Insert(ctx context.Context, s domain.PoolSnapshot) error { return nil }
func (f *fakeSnapshotRepo) Recent(ctx context.Context, chainID uint64, poolAddress string, limit int) ([]domain.PoolSnapshot, error) {
	return f.snaps, nil
}

type fakePriceRepo struct{}

func (f *fakePriceRepo) Insert(ctx context.Context, p domain.PricePoint) error { return nil }
func (f *fakePriceRepo) Recent(ctx context.Context, token domain.Token, limit int) ([]domain.PricePoint, error) {
	return nil, nil
}

type fakeRiskRepo struct {
	upserted []domain.RiskAssessment
}

func (f *fakeRiskRepo) Upsert(ctx context.Context, a domain.RiskAssessment) (uuid.UUID, error) {
	a.ID = uuid.New()
	f.upserted = append(f.upserted, a)
	return a.ID, nil
}
func (f *fakeRiskRepo) Active(ctx context.Context, entityType domain.RiskEntityType, entityID string, riskType domain.RiskType) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{}, nil
}
func (f *fakeRiskRepo) History(ctx context.Context, riskAssessmentID uuid.UUID, limit int) ([]domain.RiskAssessmentHistory, error) {
	return nil, nil
}

func TestBridgeRecomputePublishesRiskComputed(t *testing.T) {
	bus := streambus.New(0, nil)
	defer bus.Stop()

	risks := &fakeRiskRepo{}
	snaps := &fakeSnapshotRepo{snaps: []domain.PoolSnapshot{
		{ChainID: 1, PoolAddress: "0xpool", TVLUSD: decimal.NewFromInt(1_000_000), Liquidity: decimal.NewFromInt(500)},
	}}
	bridge := NewBridge(NewRegistry(), snaps, &fakePriceRepo{}, risks, bus, config.RiskWeightsConfig{}, nil)

	sub := bus.Subscribe(func(ev streambus.Event) bool { return ev.Type == streambus.EventRiskComputed })
	defer sub.Close()

	pos := domain.Position{
		ID:           uuid.New(),
		UserAddress:  "0xabc",
		Protocol:     "uniswapv3",
		PoolAddress:  "0xpool",
		ChainID:      1,
		Kind:         domain.PoolKindCLAMM,
		Token0Amount: decimal.NewFromInt(1),
		Token1Amount: decimal.NewFromInt(1),
	}
	bridge.recompute(context.Background(), pos)

	require.Len(t, risks.upserted, 1)
	assert.Equal(t, domain.EntityPosition, risks.upserted[0].EntityType)

	select {
	case ev := <-sub.Events():
		require.NotNil(t, ev.Risk)
		assert.Equal(t, "0xabc", ev.User)
	default:
		t.Fatal("expected a published RiskComputed event")
	}
}
