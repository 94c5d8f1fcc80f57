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

const appointmentColumns = `
	id, clinic_id, clinician_id, patient_id, start_time, end_time, status,
	notes, case_id, course_id, auto_created_case, cancel_reason,
	cancelled_by, cancelled_at, created_at, updated_at, deleted_at
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, clinician_id, patient_id, start_time, end_time,
			status, notes, case_id, course_id, auto_created_case,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.ClinicianID,
		appointment.PatientID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.CaseID,
		appointment.CourseID,
		appointment.AutoCreatedCase,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, false)
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, true)
}

func (r *appointmentRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND deleted_at IS NULL`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, status = $3, notes = $4,
			case_id = $5, course_id = $6, auto_created_case = $7,
			cancel_reason = $8, cancelled_by = $9, cancelled_at = $10,
			updated_at = $11
		WHERE id = $12
	`
	appointment.UpdatedAt = time.Now()

	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.CaseID,
		appointment.CourseID,
		appointment.AutoCreatedCase,
		appointment.CancelReason,
		appointment.CancelledBy,
		appointment.CancelledAt,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE deleted_at IS NULL`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.ClinicID != uuid.Nil {
			query += fmt.Sprintf(" AND clinic_id = $%d", argCount)
			args = append(args, filters.ClinicID)
			argCount++
		}
		if filters.ClinicianID != uuid.Nil {
			query += fmt.Sprintf(" AND clinician_id = $%d", argCount)
			args = append(args, filters.ClinicianID)
			argCount++
		}
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND start_time >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND end_time <= $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY start_time ASC"

	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindConflicting(ctx context.Context, clinicianID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinician_id = $1
		AND deleted_at IS NULL
		AND status IN ('scheduled', 'confirmed')
		AND start_time < $3
		AND end_time > $2
	`
	args := []interface{}{clinicianID, start, end}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}

	query += " ORDER BY start_time ASC"

	var conflicts []*model.Appointment
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &conflicts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find conflicting appointments: %w", err)
	}
	return conflicts, nil
}
