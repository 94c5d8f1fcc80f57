package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
)

// Recorder is the append-only sink for status history and audit rows. It
// never queries beyond what the engine needs; reporting is a collaborator
// concern.
type Recorder struct {
	history repository.StatusHistoryRepository
	logs    repository.AuditRepository
}

func NewRecorder(history repository.StatusHistoryRepository, logs repository.AuditRepository) *Recorder {
	return &Recorder{history: history, logs: logs}
}

// RecordTransition appends one status history entry plus a matching audit
// row and returns the history entry id. Called once per case status
// mutation, inside the mutation's transaction.
func (r *Recorder) RecordTransition(ctx context.Context, c *model.Case, old, new model.CaseStatus, actor model.Actor, reason string, isReversal bool) (uuid.UUID, error) {
	entry := &model.StatusHistoryEntry{
		CaseID:     c.ID,
		OldStatus:  old,
		NewStatus:  new,
		ActorID:    actor.ID,
		Reason:     reason,
		IsReversal: isReversal,
	}
	if err := r.history.Create(ctx, entry); err != nil {
		return uuid.Nil, err
	}

	changes, err := json.Marshal(map[string]interface{}{
		"old_status":  old,
		"new_status":  new,
		"reason":      reason,
		"is_reversal": isReversal,
	})
	if err != nil {
		return uuid.Nil, err
	}

	log := &model.AuditLog{
		ActorID:    actor.ID,
		ClinicID:   c.TargetClinicID,
		Action:     model.AuditActionTransition,
		EntityType: model.AuditEntityCase,
		EntityID:   c.ID,
		Changes:    changes,
	}
	if err := r.logs.Create(ctx, log); err != nil {
		return uuid.Nil, err
	}

	return entry.ID, nil
}

// Log appends a generic audit row for non-transition mutations.
func (r *Recorder) Log(ctx context.Context, actor model.Actor, clinicID uuid.UUID, action, entityType string, entityID uuid.UUID, changes interface{}) error {
	var raw json.RawMessage
	if changes != nil {
		b, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		raw = b
	}

	return r.logs.Create(ctx, &model.AuditLog{
		ActorID:    actor.ID,
		ClinicID:   clinicID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    raw,
	})
}

// History returns a case's status history, oldest first.
func (r *Recorder) History(ctx context.Context, caseID uuid.UUID) ([]*model.StatusHistoryEntry, error) {
	return r.history.ListForCase(ctx, caseID)
}
