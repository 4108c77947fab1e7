package ingestion

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/domain"
)

type fakePositionRepo struct {
	upserts []domain.Position
}

func (f *fakePositionRepo) Upsert(ctx context.Context, p domain.Position) (uuid.UUID, error) {
	f.upserts = append(f.upserts, p)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return p.ID, nil
}
func (f *fakePositionRepo) Get(ctx context.Context, id uuid.UUID) (domain.Position, error) {
	return domain.Position{}, nil
}
func (f *fakePositionRepo) ListByUser(ctx context.Context, user string) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakePositionRepo) ListByPool(ctx context.Context, chainID uint64, poolAddress string) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakePositionRepo) MarkZeroLiquidity(ctx context.Context, id uuid.UUID, threshold int) (bool, error) {
	return false, nil
}

func TestWritePositionsWithoutHashCacheWritesEveryCall(t *testing.T) {
	repo := &fakePositionRepo{}
	p := &Pipeline{positions: repo}

	pos := domain.Position{
		UserAddress:  "0xabc",
		Protocol:     "uniswapv3",
		PoolAddress:  "0xpool",
		Token0Amount: decimal.NewFromInt(1),
		Token1Amount: decimal.NewFromInt(1),
	}

	p.writePositions(context.Background(), []domain.Position{pos})
	p.writePositions(context.Background(), []domain.Position{pos})

	require.Len(t, repo.upserts, 2, "no hash cache wired, so both writes go through")
}

func TestWritePositionsWithoutHashCacheUpsertsPosition(t *testing.T) {
	repo := &fakePositionRepo{}
	p := &Pipeline{positions: repo, hashCache: nil}

	pos := domain.Position{
		UserAddress:  "0xabc",
		Protocol:     "uniswapv3",
		PoolAddress:  "0xpool",
		Token0Amount: decimal.NewFromInt(1),
	}
	p.writePositions(context.Background(), []domain.Position{pos})
	assert.Len(t, repo.upserts, 1)
}
