package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/physiodesk/clinic-api/internal/model"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
)

const caseColumns = `
	id, code, patient_id, purpose, status, source_clinic_id, target_clinic_id,
	course_id, appointment_id, diagnosis, chief_complaint, present_history,
	pain_score, is_reversed, reversal_reason, reversed_at, created_by,
	created_at, updated_at, deleted_at
`

func (r *caseRepository) Create(ctx context.Context, c *model.Case) error {
	query := `
		INSERT INTO cases (
			id, code, patient_id, purpose, status, source_clinic_id,
			target_clinic_id, course_id, appointment_id, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		c.Code,
		c.PatientID,
		c.Purpose,
		c.Status,
		c.SourceClinicID,
		c.TargetClinicID,
		c.CourseID,
		c.AppointmentID,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

func (r *caseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return r.get(ctx, id, false)
}

func (r *caseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return r.get(ctx, id, true)
}

func (r *caseRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 AND deleted_at IS NULL`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var c model.Case
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("case", err)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

func (r *caseRepository) Update(ctx context.Context, c *model.Case) error {
	query := `
		UPDATE cases
		SET purpose = $1, status = $2, course_id = $3, appointment_id = $4,
			diagnosis = $5, chief_complaint = $6, present_history = $7,
			pain_score = $8, is_reversed = $9, reversal_reason = $10,
			reversed_at = $11, updated_at = $12
		WHERE id = $13
	`
	c.UpdatedAt = time.Now()

	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		c.Purpose,
		c.Status,
		c.CourseID,
		c.AppointmentID,
		c.Diagnosis,
		c.ChiefComplaint,
		c.PresentHistory,
		c.PainScore,
		c.IsReversed,
		c.ReversalReason,
		c.ReversedAt,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("case", nil)
	}

	return nil
}

func (r *caseRepository) List(ctx context.Context, filters *model.CaseFilters) ([]*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE deleted_at IS NULL`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.TargetClinicID != uuid.Nil {
			query += fmt.Sprintf(" AND target_clinic_id = $%d", argCount)
			args = append(args, filters.TargetClinicID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	var cases []*model.Case
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &cases, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}
