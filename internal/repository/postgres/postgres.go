package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/physiodesk/clinic-api/internal/repository"
)

type caseRepository struct {
	db *sqlx.DB
}

type courseRepository struct {
	db *sqlx.DB
}

type appointmentRepository struct {
	db *sqlx.DB
}

type statusHistoryRepository struct {
	db *sqlx.DB
}

type auditRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

type clinicRepository struct {
	db *sqlx.DB
}

type clinicianRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewCaseRepository(db *sqlx.DB) repository.CaseRepository {
	return &caseRepository{db: db}
}

func NewCourseRepository(db *sqlx.DB) repository.CourseRepository {
	return &courseRepository{db: db}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewStatusHistoryRepository(db *sqlx.DB) repository.StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewClinicRepository(db *sqlx.DB) repository.ClinicRepository {
	return &clinicRepository{db: db}
}

func NewClinicianRepository(db *sqlx.DB) repository.ClinicianRepository {
	return &clinicianRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}
