package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// PriceHistoryRepository persists append-only oracle-validated price
// observations consumed by the VaR and correlation calculators.
type PriceHistoryRepository interface {
	Insert(ctx context.Context, p domain.PricePoint) error
	Recent(ctx context.Context, token domain.Token, limit int) ([]domain.PricePoint, error)
}

type postgresPriceHistoryRepository struct {
	db *database.DB
}

func NewPostgresPriceHistoryRepository(db *database.DB) PriceHistoryRepository {
	return &postgresPriceHistoryRepository{db: db}
}

func (r *postgresPriceHistoryRepository) Insert(ctx context.Context, p domain.PricePoint) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO price_history (id, chain_id, token_address, price_usd, source, confidence, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.db.ExecWithMetrics(ctx, query, p.ID, p.Token.ChainID, p.Token.Address, p.PriceUSD, p.Source, p.Confidence, p.Timestamp)
	if err != nil {
		return errs.New(errs.Internal, "store.PriceHistory.Insert", err)
	}
	return nil
}

func (r *postgresPriceHistoryRepository) Recent(ctx context.Context, token domain.Token, limit int) ([]domain.PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, chain_id, token_address, price_usd, source, confidence, observed_at
		FROM (
			SELECT id, chain_id, token_address, price_usd, source, confidence, observed_at
			FROM price_history
			WHERE chain_id = $1 AND token_address = $2
			ORDER BY observed_at DESC
			LIMIT $3
		) recent
		ORDER BY observed_at ASC
	`
	rows, err := r.db.QueryWithCache(ctx, fmt.Sprintf("price_history:%d:%s", token.ChainID, token.Address), query, token.ChainID, token.Address, limit)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.PriceHistory.Recent", err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		p := domain.PricePoint{Token: token}
		if err := rows.Scan(&p.ID, &p.Token.ChainID, &p.Token.Address, &p.PriceUSD, &p.Source, &p.Confidence, &p.Timestamp); err != nil {
			return nil, errs.New(errs.Internal, "store.PriceHistory.Recent", err)
		}
		out = append(out, p)
	}
	return out, nil
}
