package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/physiodesk/clinic-api/internal/model"
)

func (r *statusHistoryRepository) Create(ctx context.Context, entry *model.StatusHistoryEntry) error {
	query := `
		INSERT INTO case_status_history (
			id, case_id, old_status, new_status, actor_id, reason,
			is_reversal, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.CaseID,
		entry.OldStatus,
		entry.NewStatus,
		entry.ActorID,
		entry.Reason,
		entry.IsReversal,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create status history entry: %w", err)
	}
	return nil
}

func (r *statusHistoryRepository) ListForCase(ctx context.Context, caseID uuid.UUID) ([]*model.StatusHistoryEntry, error) {
	query := `
		SELECT id, case_id, old_status, new_status, actor_id, reason,
			   is_reversal, created_at
		FROM case_status_history
		WHERE case_id = $1
		ORDER BY created_at ASC
	`
	var entries []*model.StatusHistoryEntry
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &entries, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return entries, nil
}
