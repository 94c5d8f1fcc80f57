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

const courseColumns = `
	id, patient_id, clinic_id, total_sessions, used_sessions,
	remaining_sessions, price, paid_amount, purchased_at, expires_at,
	status, created_by, created_at, updated_at, deleted_at
`

func (r *courseRepository) Create(ctx context.Context, course *model.Course) error {
	query := `
		INSERT INTO courses (
			id, patient_id, clinic_id, total_sessions, used_sessions,
			remaining_sessions, price, paid_amount, purchased_at, expires_at,
			status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	course.CreatedAt = time.Now()
	course.UpdatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		course.ID,
		course.PatientID,
		course.ClinicID,
		course.TotalSessions,
		course.UsedSessions,
		course.RemainingSessions,
		course.Price,
		course.PaidAmount,
		course.PurchasedAt,
		course.ExpiresAt,
		course.Status,
		course.CreatedBy,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

func (r *courseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	return r.get(ctx, id, false)
}

func (r *courseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	return r.get(ctx, id, true)
}

func (r *courseRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND deleted_at IS NULL`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var course model.Course
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &course, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("course", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &course, nil
}

func (r *courseRepository) Update(ctx context.Context, course *model.Course) error {
	query := `
		UPDATE courses
		SET used_sessions = $1, remaining_sessions = $2, status = $3,
			expires_at = $4, updated_at = $5
		WHERE id = $6
	`
	course.UpdatedAt = time.Now()

	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		course.UsedSessions,
		course.RemainingSessions,
		course.Status,
		course.ExpiresAt,
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("course", nil)
	}

	return nil
}

func (r *courseRepository) AppendEntry(ctx context.Context, entry *model.CourseUsageEntry) error {
	query := `
		INSERT INTO course_usage_entries (
			id, course_id, case_id, bill_id, entry_type, delta, reason,
			usage_date, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.CourseID,
		entry.CaseID,
		entry.BillID,
		entry.EntryType,
		entry.Delta,
		entry.Reason,
		entry.UsageDate,
		entry.CreatedBy,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage entry: %w", err)
	}
	return nil
}

func (r *courseRepository) ListEntries(ctx context.Context, courseID uuid.UUID) ([]*model.CourseUsageEntry, error) {
	query := `
		SELECT id, course_id, case_id, bill_id, entry_type, delta, reason,
			   usage_date, created_by, created_at
		FROM course_usage_entries
		WHERE course_id = $1
		ORDER BY created_at ASC
	`
	var entries []*model.CourseUsageEntry
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &entries, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage entries: %w", err)
	}
	return entries, nil
}

func (r *courseRepository) ListEntriesForCase(ctx context.Context, courseID, caseID uuid.UUID) ([]*model.CourseUsageEntry, error) {
	query := `
		SELECT id, course_id, case_id, bill_id, entry_type, delta, reason,
			   usage_date, created_by, created_at
		FROM course_usage_entries
		WHERE course_id = $1 AND case_id = $2
		ORDER BY created_at ASC
	`
	var entries []*model.CourseUsageEntry
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &entries, query, courseID, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage entries for case: %w", err)
	}
	return entries, nil
}
