package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

// AlertRepository persists fired and resolved alerts.
type AlertRepository interface {
	Insert(ctx context.Context, a domain.Alert) (uuid.UUID, error)
	Resolve(ctx context.Context, id uuid.UUID) error
	// OpenForThreshold returns the most recent unresolved alert for a
	// (threshold, position) pair, used by the dedup/hysteresis logic.
	OpenForThreshold(ctx context.Context, thresholdID uuid.UUID, positionRef string) (domain.Alert, error)
	ListByUser(ctx context.Context, user string, includeResolved bool) ([]domain.Alert, error)
}

type postgresAlertRepository struct {
	db *database.DB
}

func NewPostgresAlertRepository(db *database.DB) AlertRepository {
	return &postgresAlertRepository{db: db}
}

func (r *postgresAlertRepository) Insert(ctx context.Context, a domain.Alert) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO alerts (
			id, threshold_id, user_address, position_ref, metric, type, severity,
			risk_score, current_value, threshold_value, resolved, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,$11)
	`
	_, err := r.db.ExecWithMetrics(ctx, query,
		a.ID, a.ThresholdID, a.User, a.PositionRef, a.Metric, a.Type, a.Severity,
		a.RiskScore, a.CurrentValue, a.ThresholdValue, a.CreatedAt)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.Alert.Insert", err)
	}
	return a.ID, nil
}

func (r *postgresAlertRepository) Resolve(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecWithMetrics(ctx, `UPDATE alerts SET resolved = true, resolved_at = now() WHERE id = $1 AND resolved = false`, id)
	if err != nil {
		return errs.New(errs.Internal, "store.Alert.Resolve", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.New(errs.Internal, "store.Alert.Resolve", err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "store.Alert.Resolve", "no open alert %s", id)
	}
	return nil
}

func (r *postgresAlertRepository) OpenForThreshold(ctx context.Context, thresholdID uuid.UUID, positionRef string) (domain.Alert, error) {
	query := `
		SELECT id, threshold_id, user_address, position_ref, metric, type, severity,
		       risk_score, current_value, threshold_value, resolved, created_at, resolved_at
		FROM alerts
		WHERE threshold_id = $1 AND position_ref = $2 AND resolved = false
		ORDER BY created_at DESC LIMIT 1
	`
	var a domain.Alert
	err := r.db.QueryRowContext(ctx, query, thresholdID, positionRef).Scan(
		&a.ID, &a.ThresholdID, &a.User, &a.PositionRef, &a.Metric, &a.Type, &a.Severity,
		&a.RiskScore, &a.CurrentValue, &a.ThresholdValue, &a.Resolved, &a.CreatedAt, &a.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, errs.Newf(errs.NotFound, "store.Alert.OpenForThreshold", "no open alert for threshold %s / %s", thresholdID, positionRef)
	}
	if err != nil {
		return domain.Alert{}, errs.New(errs.Internal, "store.Alert.OpenForThreshold", err)
	}
	return a, nil
}

func (r *postgresAlertRepository) ListByUser(ctx context.Context, user string, includeResolved bool) ([]domain.Alert, error) {
	where := "user_address = $1"
	if !includeResolved {
		where += " AND resolved = false"
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, threshold_id, user_address, position_ref, metric, type, severity,
		       risk_score, current_value, threshold_value, resolved, created_at, resolved_at
		FROM alerts WHERE `+where+` ORDER BY created_at DESC`, user)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.Alert.ListByUser", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.ThresholdID, &a.User, &a.PositionRef, &a.Metric, &a.Type, &a.Severity,
			&a.RiskScore, &a.CurrentValue, &a.ThresholdValue, &a.Resolved, &a.CreatedAt, &a.ResolvedAt,
		); err != nil {
			return nil, errs.New(errs.Internal, "store.Alert.ListByUser", err)
		}
		out = append(out, a)
	}
	return out, nil
}
