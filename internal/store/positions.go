// Package store persists the engine's domain entities in Postgres, modeled
// on internal/web3/repository_postgres.go's narrow-repository-per-entity
// shape: one interface, one postgres*Repository, $N placeholders, and
// ON CONFLICT upserts for idempotent writes from the ingestion pipeline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// PositionRepository persists and queries user positions.
type PositionRepository interface {
	// Upsert inserts or updates a position keyed on its natural identity
	// (user, protocol, pool, tick range, chain). Returns the row's ID.
	Upsert(ctx context.Context, p domain.Position) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Position, error)
	ListByUser(ctx context.Context, user string) ([]domain.Position, error)
	ListByPool(ctx context.Context, chainID uint64, poolAddress string) ([]domain.Position, error)
	// MarkZeroLiquidity increments the position's consecutive-zero-poll
	// counter and soft-deletes it once it reaches threshold, implementing
	// spec.md §3's position lifecycle.
	MarkZeroLiquidity(ctx context.Context, id uuid.UUID, threshold int) (deleted bool, err error)
}

type postgresPositionRepository struct {
	db *database.DB
}

// NewPostgresPositionRepository builds a PositionRepository backed by db.
func NewPostgresPositionRepository(db *database.DB) PositionRepository {
	return &postgresPositionRepository{db: db}
}

func (r *postgresPositionRepository) Upsert(ctx context.Context, p domain.Position) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := p.Validate(); err != nil {
		return uuid.Nil, errs.New(errs.InvalidInput, "store.Position.Upsert", err)
	}

	query := `
		INSERT INTO positions (
			id, user_address, protocol, pool_address, chain_id, kind,
			tick_lower, tick_upper, token0_amount, token1_amount, liquidity,
			fee_tier, collateral_usd, debt_usd, zero_liquidity_polls,
			created_at, last_updated, last_priced
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,0,$15,$16,$17)
		ON CONFLICT (user_address, protocol, pool_address, tick_lower, tick_upper, chain_id)
		DO UPDATE SET
			token0_amount = EXCLUDED.token0_amount,
			token1_amount = EXCLUDED.token1_amount,
			liquidity = EXCLUDED.liquidity,
			fee_tier = EXCLUDED.fee_tier,
			collateral_usd = EXCLUDED.collateral_usd,
			debt_usd = EXCLUDED.debt_usd,
			zero_liquidity_polls = 0,
			last_updated = EXCLUDED.last_updated,
			last_priced = EXCLUDED.last_priced
		WHERE positions.last_updated <= EXCLUDED.last_updated
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.UserAddress, p.Protocol, p.PoolAddress, p.ChainID, p.Kind,
		p.TickLower, p.TickUpper, p.Token0Amount, p.Token1Amount, p.Liquidity,
		p.FeeTier, p.CollateralUSD, p.DebtUSD,
		p.CreatedAt, p.LastUpdated, p.LastPriced,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE clause on the conditional update rejected a stale
		// write; the existing row's id is the identity to return.
		return r.idForKey(ctx, p)
	}
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.Position.Upsert", err)
	}
	return id, nil
}

func (r *postgresPositionRepository) idForKey(ctx context.Context, p domain.Position) (uuid.UUID, error) {
	query := `
		SELECT id FROM positions
		WHERE user_address = $1 AND protocol = $2 AND pool_address = $3
		  AND tick_lower = $4 AND tick_upper = $5 AND chain_id = $6
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, p.UserAddress, p.Protocol, p.PoolAddress, p.TickLower, p.TickUpper, p.ChainID).Scan(&id)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.Position.idForKey", err)
	}
	return id, nil
}

func (r *postgresPositionRepository) Get(ctx context.Context, id uuid.UUID) (domain.Position, error) {
	query := `
		SELECT id, user_address, protocol, pool_address, chain_id, kind,
		       tick_lower, tick_upper, token0_amount, token1_amount, liquidity,
		       fee_tier, collateral_usd, debt_usd, created_at, last_updated, last_priced
		FROM positions WHERE id = $1
	`
	var p domain.Position
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.UserAddress, &p.Protocol, &p.PoolAddress, &p.ChainID, &p.Kind,
		&p.TickLower, &p.TickUpper, &p.Token0Amount, &p.Token1Amount, &p.Liquidity,
		&p.FeeTier, &p.CollateralUSD, &p.DebtUSD, &p.CreatedAt, &p.LastUpdated, &p.LastPriced,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, errs.Newf(errs.NotFound, "store.Position.Get", "position %s not found", id)
	}
	if err != nil {
		return domain.Position{}, errs.New(errs.Internal, "store.Position.Get", err)
	}
	return p, nil
}

func (r *postgresPositionRepository) ListByUser(ctx context.Context, user string) ([]domain.Position, error) {
	return r.list(ctx, "user_address = $1", user)
}

func (r *postgresPositionRepository) ListByPool(ctx context.Context, chainID uint64, poolAddress string) ([]domain.Position, error) {
	return r.list(ctx, "chain_id = $1 AND pool_address = $2", chainID, poolAddress)
}

func (r *postgresPositionRepository) list(ctx context.Context, where string, args ...interface{}) ([]domain.Position, error) {
	query := fmt.Sprintf(`
		SELECT id, user_address, protocol, pool_address, chain_id, kind,
		       tick_lower, tick_upper, token0_amount, token1_amount, liquidity,
		       fee_tier, collateral_usd, debt_usd, created_at, last_updated, last_priced
		FROM positions WHERE %s AND zero_liquidity_polls < 1000000000 ORDER BY last_updated DESC
	`, where)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.Position.list", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.ID, &p.UserAddress, &p.Protocol, &p.PoolAddress, &p.ChainID, &p.Kind,
			&p.TickLower, &p.TickUpper, &p.Token0Amount, &p.Token1Amount, &p.Liquidity,
			&p.FeeTier, &p.CollateralUSD, &p.DebtUSD, &p.CreatedAt, &p.LastUpdated, &p.LastPriced,
		); err != nil {
			return nil, errs.New(errs.Internal, "store.Position.list", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// MarkZeroLiquidity implements the soft-delete-after-N-polls lifecycle rule.
func (r *postgresPositionRepository) MarkZeroLiquidity(ctx context.Context, id uuid.UUID, threshold int) (bool, error) {
	query := `
		UPDATE positions SET zero_liquidity_polls = zero_liquidity_polls + 1
		WHERE id = $1
		RETURNING zero_liquidity_polls
	`
	var polls int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&polls); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, errs.Newf(errs.NotFound, "store.Position.MarkZeroLiquidity", "position %s not found", id)
		}
		return false, errs.New(errs.Internal, "store.Position.MarkZeroLiquidity", err)
	}
	if polls < threshold {
		return false, nil
	}
	if _, err := r.db.ExecWithMetrics(ctx, `UPDATE positions SET zero_liquidity_polls = 1000000000 WHERE id = $1`, id); err != nil {
		return false, errs.New(errs.Internal, "store.Position.MarkZeroLiquidity", err)
	}
	return true, nil
}
