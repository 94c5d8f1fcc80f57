package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
)

// TxManager runs a function inside a storage transaction. Repository calls
// made with the context passed to fn join that transaction. Nested calls
// join the outer transaction instead of opening a new one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	CaseRepository interface {
		Create(ctx context.Context, c *model.Case) error
		Get(ctx context.Context, id uuid.UUID) (*model.Case, error)
		// GetForUpdate locks the row for the duration of the surrounding
		// transaction so compare-and-set invariants hold under concurrency.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Case, error)
		Update(ctx context.Context, c *model.Case) error
		List(ctx context.Context, filters *model.CaseFilters) ([]*model.Case, error)
	}

	CourseRepository interface {
		Create(ctx context.Context, course *model.Course) error
		Get(ctx context.Context, id uuid.UUID) (*model.Course, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Course, error)
		Update(ctx context.Context, course *model.Course) error
		// AppendEntry inserts a usage entry. Entries are append-only; there
		// is deliberately no update or delete.
		AppendEntry(ctx context.Context, entry *model.CourseUsageEntry) error
		ListEntries(ctx context.Context, courseID uuid.UUID) ([]*model.CourseUsageEntry, error)
		ListEntriesForCase(ctx context.Context, courseID, caseID uuid.UUID) ([]*model.CourseUsageEntry, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// FindConflicting returns every scheduled or confirmed appointment for
		// the clinician overlapping [start, end), not just the first.
		FindConflicting(ctx context.Context, clinicianID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
	}

	StatusHistoryRepository interface {
		Create(ctx context.Context, entry *model.StatusHistoryEntry) error
		ListForCase(ctx context.Context, caseID uuid.UUID) ([]*model.StatusHistoryEntry, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		List(ctx context.Context) ([]*model.Clinic, error)
	}

	ClinicianRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error)
		GetByEmail(ctx context.Context, email string) (*model.Clinician, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
