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

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, code, name, address, phone, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if clinic.ID == uuid.Nil {
		clinic.ID = uuid.New()
	}
	clinic.CreatedAt = time.Now()
	clinic.UpdatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		clinic.ID,
		clinic.Code,
		clinic.Name,
		clinic.Address,
		clinic.Phone,
		clinic.Status,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `
		SELECT id, code, name, address, phone, status, created_at, updated_at, deleted_at
		FROM clinics
		WHERE id = $1 AND deleted_at IS NULL
	`
	var clinic model.Clinic
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &clinic, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("clinic", err)
		}
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	query := `
		SELECT id, code, name, address, phone, status, created_at, updated_at, deleted_at
		FROM clinics
		WHERE deleted_at IS NULL
		ORDER BY code ASC
	`
	var clinics []*model.Clinic
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &clinics, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

func (r *clinicianRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error) {
	query := `
		SELECT id, clinic_id, name, email, password_hash, privileged, status,
			   created_at, updated_at, deleted_at
		FROM clinicians
		WHERE id = $1 AND deleted_at IS NULL
	`
	var clinician model.Clinician
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &clinician, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("clinician", err)
		}
		return nil, fmt.Errorf("failed to get clinician: %w", err)
	}
	return &clinician, nil
}

func (r *clinicianRepository) GetByEmail(ctx context.Context, email string) (*model.Clinician, error) {
	query := `
		SELECT id, clinic_id, name, email, password_hash, privileged, status,
			   created_at, updated_at, deleted_at
		FROM clinicians
		WHERE email = $1 AND deleted_at IS NULL
	`
	var clinician model.Clinician
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &clinician, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("clinician", err)
		}
		return nil, fmt.Errorf("failed to get clinician by email: %w", err)
	}
	return &clinician, nil
}
