// Package memory provides map-backed repository implementations for service
// tests. Transactions are pass-through; invariants exercised here are the
// services' own, not the storage engine's.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
)

// TxManager runs the function directly; there is nothing to commit.
type TxManager struct{}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type CaseRepository struct {
	mu    sync.Mutex
	cases map[uuid.UUID]model.Case
}

func NewCaseRepository() *CaseRepository {
	return &CaseRepository{cases: make(map[uuid.UUID]model.Case)}
}

func (r *CaseRepository) Create(ctx context.Context, c *model.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.cases[c.ID] = *c
	return nil
}

func (r *CaseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, apperrors.NotFound("case", nil)
	}
	cp := c
	return &cp, nil
}

func (r *CaseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return r.Get(ctx, id)
}

func (r *CaseRepository) Update(ctx context.Context, c *model.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return apperrors.NotFound("case", nil)
	}
	c.UpdatedAt = time.Now()
	r.cases[c.ID] = *c
	return nil
}

func (r *CaseRepository) List(ctx context.Context, filters *model.CaseFilters) ([]*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Case
	for _, c := range r.cases {
		if filters != nil {
			if filters.PatientID != uuid.Nil && c.PatientID != filters.PatientID {
				continue
			}
			if filters.TargetClinicID != uuid.Nil && c.TargetClinicID != filters.TargetClinicID {
				continue
			}
			if filters.Status != "" && c.Status != filters.Status {
				continue
			}
		}
		cp := c
		out = append(out, &cp)
	}
	return out, nil
}

type CourseRepository struct {
	mu      sync.Mutex
	courses map[uuid.UUID]model.Course
	entries []model.CourseUsageEntry
}

func NewCourseRepository() *CourseRepository {
	return &CourseRepository{courses: make(map[uuid.UUID]model.Course)}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	course.ID = uuid.New()
	course.CreatedAt = time.Now()
	course.UpdatedAt = course.CreatedAt
	r.courses[course.ID] = *course
	return nil
}

func (r *CourseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, apperrors.NotFound("course", nil)
	}
	cp := course
	return &cp, nil
}

func (r *CourseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	return r.Get(ctx, id)
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[course.ID]; !ok {
		return apperrors.NotFound("course", nil)
	}
	course.UpdatedAt = time.Now()
	r.courses[course.ID] = *course
	return nil
}

func (r *CourseRepository) AppendEntry(ctx context.Context, entry *model.CourseUsageEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *CourseRepository) ListEntries(ctx context.Context, courseID uuid.UUID) ([]*model.CourseUsageEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CourseUsageEntry
	for i := range r.entries {
		if r.entries[i].CourseID == courseID {
			cp := r.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *CourseRepository) ListEntriesForCase(ctx context.Context, courseID, caseID uuid.UUID) ([]*model.CourseUsageEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CourseUsageEntry
	for i := range r.entries {
		e := r.entries[i]
		if e.CourseID == courseID && e.CaseID != nil && *e.CaseID == caseID {
			cp := e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type AppointmentRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]model.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[uuid.UUID]model.Appointment)}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = *a
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := a
	return &cp, nil
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *AppointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[a.ID]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	a.UpdatedAt = time.Now()
	r.appointments[a.ID] = *a
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	delete(r.appointments, id)
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.appointments {
		if filters != nil {
			if filters.ClinicID != uuid.Nil && a.ClinicID != filters.ClinicID {
				continue
			}
			if filters.ClinicianID != uuid.Nil && a.ClinicianID != filters.ClinicianID {
				continue
			}
			if filters.Status != "" && a.Status != filters.Status {
				continue
			}
		}
		cp := a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AppointmentRepository) FindConflicting(ctx context.Context, clinicianID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.appointments {
		if a.ClinicianID != clinicianID {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Status != model.AppointmentStatusScheduled && a.Status != model.AppointmentStatusConfirmed {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type StatusHistoryRepository struct {
	mu      sync.Mutex
	entries []model.StatusHistoryEntry
}

func NewStatusHistoryRepository() *StatusHistoryRepository {
	return &StatusHistoryRepository{}
}

func (r *StatusHistoryRepository) Create(ctx context.Context, entry *model.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *StatusHistoryRepository) ListForCase(ctx context.Context, caseID uuid.UUID) ([]*model.StatusHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StatusHistoryEntry
	for i := range r.entries {
		if r.entries[i].CaseID == caseID {
			cp := r.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type AuditRepository struct {
	mu   sync.Mutex
	logs []model.AuditLog
}

func NewAuditRepository() *AuditRepository { return &AuditRepository{} }

func (r *AuditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, *log)
	return nil
}

type ClinicRepository struct {
	mu      sync.Mutex
	clinics map[uuid.UUID]model.Clinic
}

func NewClinicRepository() *ClinicRepository {
	return &ClinicRepository{clinics: make(map[uuid.UUID]model.Clinic)}
}

func (r *ClinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clinic.ID = uuid.New()
	clinic.CreatedAt = time.Now()
	clinic.UpdatedAt = clinic.CreatedAt
	r.clinics[clinic.ID] = *clinic
	return nil
}

func (r *ClinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clinic, ok := r.clinics[id]
	if !ok {
		return nil, apperrors.NotFound("clinic", nil)
	}
	cp := clinic
	return &cp, nil
}

func (r *ClinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Clinic
	for _, c := range r.clinics {
		cp := c
		out = append(out, &cp)
	}
	return out, nil
}

type OutboxRepository struct {
	mu     sync.Mutex
	events []model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository { return &OutboxRepository{} }

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	r.events = append(r.events, *event)
	return nil
}

func (r *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for i := range r.events {
		if len(out) >= limit {
			break
		}
		if r.events[i].Status == model.OutboxStatusPending || r.events[i].Status == model.OutboxStatusFailed {
			cp := r.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID != id {
			continue
		}
		r.events[i].Status = status
		r.events[i].ErrorMessage = errorMessage
		r.events[i].UpdatedAt = time.Now()
		if status == model.OutboxStatusProcessed {
			now := time.Now()
			r.events[i].ProcessedAt = &now
		}
		if status == model.OutboxStatusFailed || status == model.OutboxStatusDeadLetter {
			r.events[i].RetryCount++
		}
		return nil
	}
	return apperrors.NotFound("outbox event", nil)
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []model.OutboxEvent
	var deleted int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a snapshot of everything written, for assertions.
func (r *OutboxRepository) Events() []model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OutboxEvent, len(r.events))
	copy(out, r.events)
	return out
}

var (
	_ repository.TxManager               = (*TxManager)(nil)
	_ repository.CaseRepository          = (*CaseRepository)(nil)
	_ repository.CourseRepository        = (*CourseRepository)(nil)
	_ repository.AppointmentRepository   = (*AppointmentRepository)(nil)
	_ repository.StatusHistoryRepository = (*StatusHistoryRepository)(nil)
	_ repository.AuditRepository         = (*AuditRepository)(nil)
	_ repository.ClinicRepository        = (*ClinicRepository)(nil)
	_ repository.OutboxRepository        = (*OutboxRepository)(nil)
)
