package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository.
// It only inserts and reads; the table rejects updates and deletes.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a history record
func (r *HistoryRepository) Append(ctx context.Context, record *entity.WorkflowApprovalHistory) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now()
	}

	var approvalID sql.NullInt64
	if record.ApprovalID != nil {
		approvalID = sql.NullInt64{Int64: *record.ApprovalID, Valid: true}
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_approval_history (
			instance_id, approval_id, action, actor_id,
			previous_status, new_status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.InstanceID,
		approvalID,
		record.Action,
		record.ActorID,
		record.PreviousStatus,
		record.NewStatus,
		record.Comments,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append history record",
			zap.Int64("instance_id", record.InstanceID),
			zap.String("action", string(record.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// ListByInstance retrieves the timeline of an instance, oldest first
func (r *HistoryRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApprovalHistory, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, instance_id, approval_id, action, actor_id,
			previous_status, new_status, comments, created_at
		FROM workflow_approval_history
		WHERE instance_id = ?
		ORDER BY created_at ASC, id ASC
	`, instanceID)
	if err != nil {
		r.logger.Error("Failed to get history by instance ID", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.WorkflowApprovalHistory{}
	for rows.Next() {
		var (
			record     entity.WorkflowApprovalHistory
			approvalID sql.NullInt64
		)
		if err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&approvalID,
			&record.Action,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Comments,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if approvalID.Valid {
			id := approvalID.Int64
			record.ApprovalID = &id
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
