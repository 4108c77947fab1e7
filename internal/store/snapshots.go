package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// PoolSnapshotRepository persists append-only pool observations used by the
// risk calculators' volatility and trend estimators.
type PoolSnapshotRepository interface {
	Insert(ctx context.Context, s domain.PoolSnapshot) error
	// Recent returns up to limit snapshots for (chainID, poolAddress),
	// oldest first, matching the ordering internal/riskengine expects for
	// log-return and trend computation.
	Recent(ctx context.Context, chainID uint64, poolAddress string, limit int) ([]domain.PoolSnapshot, error)
}

type postgresPoolSnapshotRepository struct {
	db *database.DB
}

func NewPostgresPoolSnapshotRepository(db *database.DB) PoolSnapshotRepository {
	return &postgresPoolSnapshotRepository{db: db}
}

func (r *postgresPoolSnapshotRepository) Insert(ctx context.Context, s domain.PoolSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `
		INSERT INTO pool_snapshots (id, chain_id, pool_address, tick, liquidity, tvl_usd, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.db.ExecWithMetrics(ctx, query, s.ID, s.ChainID, s.PoolAddress, s.Tick, s.Liquidity, s.TVLUSD, s.ObservedAt)
	if err != nil {
		return errs.New(errs.Internal, "store.PoolSnapshot.Insert", err)
	}
	return nil
}

func (r *postgresPoolSnapshotRepository) Recent(ctx context.Context, chainID uint64, poolAddress string, limit int) ([]domain.PoolSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, chain_id, pool_address, tick, liquidity, tvl_usd, observed_at
		FROM (
			SELECT id, chain_id, pool_address, tick, liquidity, tvl_usd, observed_at
			FROM pool_snapshots
			WHERE chain_id = $1 AND pool_address = $2
			ORDER BY observed_at DESC
			LIMIT $3
		) recent
		ORDER BY observed_at ASC
	`
	rows, err := r.db.QueryWithCache(ctx, "pool_snapshots:"+poolAddress, query, chainID, poolAddress, limit)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.PoolSnapshot.Recent", err)
	}
	defer rows.Close()

	var out []domain.PoolSnapshot
	for rows.Next() {
		var s domain.PoolSnapshot
		if err := rows.Scan(&s.ID, &s.ChainID, &s.PoolAddress, &s.Tick, &s.Liquidity, &s.TVLUSD, &s.ObservedAt); err != nil {
			return nil, errs.New(errs.Internal, "store.PoolSnapshot.Recent", err)
		}
		out = append(out, s)
	}
	return out, nil
}
