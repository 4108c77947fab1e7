package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// ThresholdRepository persists user-configured alert thresholds.
type ThresholdRepository interface {
	Upsert(ctx context.Context, t domain.Threshold) (uuid.UUID, error)
	ListByUser(ctx context.Context, user string) ([]domain.Threshold, error)
	ListEnabledByMetric(ctx context.Context, metric string) ([]domain.Threshold, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresThresholdRepository struct {
	db *database.DB
}

func NewPostgresThresholdRepository(db *database.DB) ThresholdRepository {
	return &postgresThresholdRepository{db: db}
}

func (r *postgresThresholdRepository) Upsert(ctx context.Context, t domain.Threshold) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO alert_thresholds (id, user_address, metric, operator, value, cooldown_secs, enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			operator = EXCLUDED.operator,
			value = EXCLUDED.value,
			cooldown_secs = EXCLUDED.cooldown_secs,
			enabled = EXCLUDED.enabled
	`
	_, err := r.db.ExecWithMetrics(ctx, query, t.ID, t.User, t.Metric, t.Operator, t.Value, int64(t.Cooldown.Seconds()), t.Enabled)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.Threshold.Upsert", err)
	}
	return t.ID, nil
}

func (r *postgresThresholdRepository) ListByUser(ctx context.Context, user string) ([]domain.Threshold, error) {
	return r.list(ctx, "user_address = $1", user)
}

func (r *postgresThresholdRepository) ListEnabledByMetric(ctx context.Context, metric string) ([]domain.Threshold, error) {
	return r.list(ctx, "metric = $1 AND enabled = true", metric)
}

func (r *postgresThresholdRepository) list(ctx context.Context, where string, args ...interface{}) ([]domain.Threshold, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_address, metric, operator, value, cooldown_secs, enabled
		FROM alert_thresholds WHERE `+where, args...)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.Threshold.list", err)
	}
	defer rows.Close()

	var out []domain.Threshold
	for rows.Next() {
		var t domain.Threshold
		var cooldownSecs int64
		if err := rows.Scan(&t.ID, &t.User, &t.Metric, &t.Operator, &t.Value, &cooldownSecs, &t.Enabled); err != nil {
			return nil, errs.New(errs.Internal, "store.Threshold.list", err)
		}
		t.Cooldown = secondsToDuration(cooldownSecs)
		out = append(out, t)
	}
	return out, nil
}

func (r *postgresThresholdRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecWithMetrics(ctx, `DELETE FROM alert_thresholds WHERE id = $1`, id)
	if err != nil {
		return errs.New(errs.Internal, "store.Threshold.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.New(errs.Internal, "store.Threshold.Delete", err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "store.Threshold.Delete", "threshold %s not found", id)
	}
	return nil
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
