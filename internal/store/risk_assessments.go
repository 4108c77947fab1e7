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

// RiskAssessmentRepository persists the current and historical risk score
// per (entity, risk type) pair. At most one active row may exist for a
// given pair; superseding a row moves the old values into
// risk_assessment_history inside the same transaction.
type RiskAssessmentRepository interface {
	Upsert(ctx context.Context, a domain.RiskAssessment) (uuid.UUID, error)
	Active(ctx context.Context, entityType domain.RiskEntityType, entityID string, riskType domain.RiskType) (domain.RiskAssessment, error)
	History(ctx context.Context, riskAssessmentID uuid.UUID, limit int) ([]domain.RiskAssessmentHistory, error)
}

type postgresRiskAssessmentRepository struct {
	db *database.DB
}

func NewPostgresRiskAssessmentRepository(db *database.DB) RiskAssessmentRepository {
	return &postgresRiskAssessmentRepository{db: db}
}

func (r *postgresRiskAssessmentRepository) Upsert(ctx context.Context, a domain.RiskAssessment) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
	}
	defer tx.Rollback()

	var prev domain.RiskAssessment
	err = tx.QueryRowContext(ctx, `
		SELECT id, score, severity FROM risk_assessments
		WHERE entity_type = $1 AND entity_id = $2 AND risk_type = $3 AND is_active = true
		FOR UPDATE
	`, a.EntityType, a.EntityID, a.RiskType).Scan(&prev.ID, &prev.Score, &prev.Severity)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no prior active row, nothing to supersede
	case err != nil:
		return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO risk_assessment_history (id, risk_assessment_id, previous_score, new_score, previous_severity, new_severity, change_reason, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		`, uuid.New(), prev.ID, prev.Score, a.Score, prev.Severity, a.Severity, "recomputed"); err != nil {
			return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE risk_assessments SET is_active = false WHERE id = $1`, prev.ID); err != nil {
			return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO risk_assessments (
			id, entity_type, entity_id, user_id, risk_type, score, severity,
			confidence, description, expires_at, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true,now(),now())
	`, a.ID, a.EntityType, a.EntityID, a.UserID, a.RiskType, a.Score, a.Severity, a.Confidence, a.Description, a.ExpiresAt)
	if err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, errs.New(errs.Internal, "store.RiskAssessment.Upsert", err)
	}
	return a.ID, nil
}

func (r *postgresRiskAssessmentRepository) Active(ctx context.Context, entityType domain.RiskEntityType, entityID string, riskType domain.RiskType) (domain.RiskAssessment, error) {
	query := `
		SELECT id, entity_type, entity_id, user_id, risk_type, score, severity,
		       confidence, description, expires_at, is_active, created_at, updated_at
		FROM risk_assessments
		WHERE entity_type = $1 AND entity_id = $2 AND risk_type = $3 AND is_active = true
	`
	var a domain.RiskAssessment
	err := r.db.QueryRowContext(ctx, query, entityType, entityID, riskType).Scan(
		&a.ID, &a.EntityType, &a.EntityID, &a.UserID, &a.RiskType, &a.Score, &a.Severity,
		&a.Confidence, &a.Description, &a.ExpiresAt, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RiskAssessment{}, errs.Newf(errs.NotFound, "store.RiskAssessment.Active", "no active %s assessment for %s", riskType, entityID)
	}
	if err != nil {
		return domain.RiskAssessment{}, errs.New(errs.Internal, "store.RiskAssessment.Active", err)
	}
	return a, nil
}

func (r *postgresRiskAssessmentRepository) History(ctx context.Context, riskAssessmentID uuid.UUID, limit int) ([]domain.RiskAssessmentHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, risk_assessment_id, previous_score, new_score, previous_severity, new_severity, change_reason, created_at
		FROM risk_assessment_history
		WHERE risk_assessment_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, riskAssessmentID, limit)
	if err != nil {
		return nil, errs.New(errs.Internal, "store.RiskAssessment.History", err)
	}
	defer rows.Close()

	var out []domain.RiskAssessmentHistory
	for rows.Next() {
		var h domain.RiskAssessmentHistory
		if err := rows.Scan(&h.ID, &h.RiskAssessmentID, &h.PreviousScore, &h.NewScore, &h.PreviousSeverity, &h.NewSeverity, &h.ChangeReason, &h.CreatedAt); err != nil {
			return nil, errs.New(errs.Internal, "store.RiskAssessment.History", err)
		}
		out = append(out, h)
	}
	return out, nil
}
