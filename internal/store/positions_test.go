package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/pkg/database"
	"github.com/riskmonitor/engine/pkg/observability"
)

func newTestDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	logger := observability.NewLogger(config.ObservabilityConfig{ServiceName: "store-test", LogLevel: "error"})
	return database.NewForTesting(sqlDB, logger), mock
}

func TestPositionUpsertRejectsInvalid(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewPostgresPositionRepository(db)

	_, err := repo.Upsert(context.Background(), domain.Position{
		TickLower:    10,
		TickUpper:    5,
		Token0Amount: decimal.NewFromInt(1),
	})
	require.Error(t, err)
}

func TestPositionUpsertRunsConflictingUpdate(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewPostgresPositionRepository(db)

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO positions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	got, err := repo.Upsert(context.Background(), domain.Position{
		ID:           id,
		UserAddress:  "0xabc",
		Protocol:     "uniswapv3",
		PoolAddress:  "0xpool",
		ChainID:      1,
		Kind:         domain.PoolKindCLAMM,
		TickLower:    -10,
		TickUpper:    10,
		Token0Amount: decimal.NewFromInt(1),
		Token1Amount: decimal.NewFromInt(1),
		CreatedAt:    time.Now(),
		LastUpdated:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, id, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionGetNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewPostgresPositionRepository(db)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM positions WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_address", "protocol", "pool_address", "chain_id", "kind",
			"tick_lower", "tick_upper", "token0_amount", "token1_amount", "liquidity",
			"fee_tier", "collateral_usd", "debt_usd", "created_at", "last_updated", "last_priced",
		}))

	_, err := repo.Get(context.Background(), id)
	require.Error(t, err)
}
