package model

import (
	"time"

	"github.com/google/uuid"
)

type CourseStatus string

const (
	CourseStatusActive    CourseStatus = "active"
	CourseStatusCompleted CourseStatus = "completed"
	CourseStatusExpired   CourseStatus = "expired"
	CourseStatusCancelled CourseStatus = "cancelled"
)

// Course is a pre-paid bundle of treatment sessions owned by one patient at
// one clinic. remaining = total - used holds at all times; remaining
// decreases only via a USE entry and increases only via a RETURN or a
// negative ADJUST entry.
type Course struct {
	Base
	PatientID         uuid.UUID    `db:"patient_id" json:"patient_id"`
	ClinicID          uuid.UUID    `db:"clinic_id" json:"clinic_id"`
	TotalSessions     int          `db:"total_sessions" json:"total_sessions"`
	UsedSessions      int          `db:"used_sessions" json:"used_sessions"`
	RemainingSessions int          `db:"remaining_sessions" json:"remaining_sessions"`
	Price             float64      `db:"price" json:"price"`
	PaidAmount        float64      `db:"paid_amount" json:"paid_amount"`
	PurchasedAt       time.Time    `db:"purchased_at" json:"purchased_at"`
	ExpiresAt         *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	Status            CourseStatus `db:"status" json:"status"`
	CreatedBy         uuid.UUID    `db:"created_by" json:"created_by"`
}

type UsageEntryType string

const (
	UsageEntryUse    UsageEntryType = "use"
	UsageEntryReturn UsageEntryType = "return"
	UsageEntryAdjust UsageEntryType = "adjust"
)

// CourseUsageEntry is an immutable ledger row. Entries are append-only;
// corrections are new ADJUST entries, never edits. Delta is signed in terms
// of used sessions: USE is +n, RETURN is -n, ADJUST carries an explicit
// sign. The running sum of Delta for a course equals its used counter.
type CourseUsageEntry struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	CourseID  uuid.UUID      `db:"course_id" json:"course_id"`
	CaseID    *uuid.UUID     `db:"case_id" json:"case_id,omitempty"`
	BillID    *uuid.UUID     `db:"bill_id" json:"bill_id,omitempty"`
	EntryType UsageEntryType `db:"entry_type" json:"entry_type"`
	Delta     int            `db:"delta" json:"delta"`
	Reason    string         `db:"reason" json:"reason,omitempty"`
	UsageDate time.Time      `db:"usage_date" json:"usage_date"`
	CreatedBy uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

type CreateCourseRequest struct {
	PatientID     uuid.UUID  `json:"patient_id" binding:"required"`
	ClinicID      uuid.UUID  `json:"clinic_id" binding:"required"`
	TotalSessions int        `json:"total_sessions" binding:"required,min=1"`
	Price         float64    `json:"price" binding:"min=0"`
	PaidAmount    float64    `json:"paid_amount" binding:"min=0"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

type AdjustCourseRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required,max=500"`
}
