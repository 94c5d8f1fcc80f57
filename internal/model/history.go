package model

import (
	"time"

	"github.com/google/uuid"
)

// StatusHistoryEntry is the audit record created on every case status
// mutation. Entries are never mutated after creation.
type StatusHistoryEntry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CaseID     uuid.UUID  `db:"case_id" json:"case_id"`
	OldStatus  CaseStatus `db:"old_status" json:"old_status"`
	NewStatus  CaseStatus `db:"new_status" json:"new_status"`
	ActorID    uuid.UUID  `db:"actor_id" json:"actor_id"`
	Reason     string     `db:"reason" json:"reason"`
	IsReversal bool       `db:"is_reversal" json:"is_reversal"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
