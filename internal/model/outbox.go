package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDeadLetter OutboxStatus = "DEAD_LETTER"
)

// Lifecycle event types written to the outbox in the same transaction as
// the state change they describe.
const (
	EventCaseTransitioned  = "case.transitioned"
	EventCaseAutoCreated   = "case.auto_created"
	EventAppointmentBooked = "appointment.booked"
	EventAppointmentDone   = "appointment.completed"
	EventAppointmentVoid   = "appointment.cancelled"
	EventSessionUsed       = "course.session_used"
	EventSessionReturned   = "course.session_returned"
	EventCourseAdjusted    = "course.adjusted"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
