package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// WebhookRepository persists registered delivery targets and a log of
// attempted deliveries.
type WebhookRepository interface {
	Upsert(ctx context.Context, w domain.Webhook) (uuid.UUID, error)
	ListEnabledByUser(ctx context.Context, user string) ([]domain.Webhook, error)
	RecordDelivery(ctx context.Context, d domain.WebhookDelivery) error
}

type postgresWebhookRepository struct {
	db *database.DB
}

func NewPostgresWebhookRepository(db *database.DB) WebhookRepository {
	return &postgresWebhookRepository{db: db}
}

func (r *postgresWebhookRepository) Upsert(ctx context.Context, w domain.Webhook) (uuid.UUID, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	query := `
		INSERT INTO webhooks (id, user_address, url, secret, enabled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET url = EXCLUDED.url, secret = EXCLUDED.secret, enabled = EXCLUDED.enabled
	`
	_, err := r.db.ExecWithMetrics(ctx, query, w.ID, w.User, w.URL, w.Secret, w.Enabled, w.CreatedAt)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.Webhook.Upsert", err)
	}
	return w.ID, nil
}

func (r *postgresWebhookRepository) ListEnabledByUser(ctx context.Context, user string) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_address, url, secret, enabled, created_at
		FROM webhooks WHERE user_address = $1 AND enabled = true
	`, user)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.Webhook.ListEnabledByUser", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		var w domain.Webhook
		if err := rows.Scan(&w.ID, &w.User, &w.URL, &w.Secret, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, errs.New(errs.Internal, "store.Webhook.ListEnabledByUser", err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *postgresWebhookRepository) RecordDelivery(ctx context.Context, d domain.WebhookDelivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, alert_id, status_code, error, delivered_ok, attempted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.db.ExecWithMetrics(ctx, query, d.ID, d.WebhookID, d.AlertID, d.StatusCode, d.Error, d.DeliveredOK, d.AttemptedAt)
	if err != nil {
		return errs.New(errs.Internal, "store.Webhook.RecordDelivery", err)
	}
	return nil
}
