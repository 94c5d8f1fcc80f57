package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// Appointment is a scheduled slot for a patient (or anonymous walk-in) with
// a clinician at a clinic. It optionally references a Case; the reference is
// nulled rather than cascaded when either side goes away.
type Appointment struct {
	Base
	ClinicID        uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	ClinicianID     uuid.UUID         `db:"clinician_id" json:"clinician_id"`
	PatientID       *uuid.UUID        `db:"patient_id" json:"patient_id,omitempty"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CaseID          *uuid.UUID        `db:"case_id" json:"case_id,omitempty"`
	CourseID        *uuid.UUID        `db:"course_id" json:"course_id,omitempty"`
	AutoCreatedCase bool              `db:"auto_created_case" json:"auto_created_case"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy     *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

type CreateAppointmentRequest struct {
	ClinicID       uuid.UUID  `json:"clinic_id" binding:"required"`
	ClinicianID    uuid.UUID  `json:"clinician_id" binding:"required"`
	PatientID      *uuid.UUID `json:"patient_id"`
	StartTime      time.Time  `json:"start_time" binding:"required"`
	EndTime        time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	Notes          string     `json:"notes" binding:"max=1000"`
	CourseID       *uuid.UUID `json:"course_id"`
	AutoCreateCase bool       `json:"auto_create_case"`
}

// CompleteAppointmentRequest carries the clinical payloads collected from
// the same user action that completes the appointment; the bridge forwards
// them to the case transitions it drives.
type CompleteAppointmentRequest struct {
	Assessment *AssessmentPayload `json:"assessment"`
	SOAP       *SOAPNote          `json:"soap" binding:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type AppointmentFilters struct {
	ClinicID    uuid.UUID
	ClinicianID uuid.UUID
	PatientID   uuid.UUID
	Status      AppointmentStatus
	StartDate   time.Time
	EndDate     time.Time
}
