package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new workflow approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `a.id, a.instance_id, a.step_sequence, a.required_role, a.status,
	a.approver_id, a.response_time, a.comments, a.version, a.created_at, a.updated_at`

// Create inserts a new approval row
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.WorkflowApproval) error {
	ts := now()
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_approvals (
			instance_id, step_sequence, required_role, status,
			approver_id, comments, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		approval.InstanceID,
		approval.StepSequence,
		approval.RequiredRole,
		approval.Status,
		approval.ApproverID,
		approval.Comments,
		ts,
		ts,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow approval",
			zap.Int64("instance_id", approval.InstanceID),
			zap.Int("step", approval.StepSequence),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approval.ID = id
	approval.Version = 1
	approval.CreatedAt = ts
	approval.UpdatedAt = ts
	return nil
}

// GetByID retrieves an approval by ID, or nil if missing
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowApproval, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM workflow_approvals a WHERE a.id = ?`, id)

	approval, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow approval", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow approval: %w", err)
	}
	return approval, nil
}

// ListByInstance returns all approvals of an instance in creation order
func (r *ApprovalRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+` FROM workflow_approvals a
		WHERE a.instance_id = ?
		ORDER BY a.id ASC
	`, instanceID)
}

// ListByInstanceStep returns the approvals of one step of an instance
func (r *ApprovalRepository) ListByInstanceStep(ctx context.Context, instanceID int64, stepSequence int) ([]*entity.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+` FROM workflow_approvals a
		WHERE a.instance_id = ? AND a.step_sequence = ?
		ORDER BY a.id ASC
	`, instanceID, stepSequence)
}

// ListPending returns actionable approvals, oldest first
func (r *ApprovalRepository) ListPending(ctx context.Context, filter port.PendingFilter) ([]*entity.WorkflowApproval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM workflow_approvals a
		JOIN workflow_instances i ON i.id = a.instance_id
		WHERE a.status = ?
			AND a.step_sequence = i.current_step_sequence
			AND i.status IN (?, ?)`
	args := []interface{}{entity.ApprovalStatusPending, workflow.StatePending, workflow.StateInProgress}

	if filter.Role != nil {
		query += ` AND a.required_role = ?`
		args = append(args, *filter.Role)
	}
	if filter.UniversityID != "" {
		query += ` AND i.university_id = ?`
		args = append(args, filter.UniversityID)
	}
	if filter.CompanyID != "" {
		query += ` AND i.company_id = ?`
		args = append(args, filter.CompanyID)
	}
	query += ` ORDER BY a.created_at ASC, a.id ASC LIMIT ? OFFSET ?`
	args = append(args, sqliteLimit(filter.Limit), filter.Offset)

	return r.query(ctx, query, args...)
}

// Decide writes a decision only if the approval is still pending
func (r *ApprovalRepository) Decide(ctx context.Context, id int64, decision port.Decision) (*entity.WorkflowApproval, error) {
	ts := now()
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_approvals
		SET status = ?, approver_id = ?, response_time = ?, comments = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		decision.Status,
		decision.ApproverID,
		decision.At.UTC(),
		decision.Comments,
		ts,
		id,
		entity.ApprovalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to decide workflow approval", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to decide workflow approval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("approval %d: %w", id, workflow.ErrNotFound)
		}
		return nil, fmt.Errorf("approval %d is %s: %w", id, existing.Status, workflow.ErrInvalidState)
	}

	return r.GetByID(ctx, id)
}

// CancelPending withdraws outstanding approvals of an instance
func (r *ApprovalRepository) CancelPending(ctx context.Context, instanceID int64, at time.Time) (int64, error) {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_approvals
		SET status = ?, response_time = ?, version = version + 1, updated_at = ?
		WHERE instance_id = ? AND status = ?
	`,
		entity.ApprovalStatusCancelled,
		at.UTC(),
		now(),
		instanceID,
		entity.ApprovalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to cancel pending approvals", zap.Int64("instance_id", instanceID), zap.Error(err))
		return 0, fmt.Errorf("failed to cancel pending approvals: %w", err)
	}
	return result.RowsAffected()
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowApproval, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflow approvals", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow approvals: %w", err)
	}
	defer rows.Close()

	approvals := []*entity.WorkflowApproval{}
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

func scanApproval(s scanner) (*entity.WorkflowApproval, error) {
	var (
		approval     entity.WorkflowApproval
		responseTime sql.NullTime
	)
	err := s.Scan(
		&approval.ID,
		&approval.InstanceID,
		&approval.StepSequence,
		&approval.RequiredRole,
		&approval.Status,
		&approval.ApproverID,
		&responseTime,
		&approval.Comments,
		&approval.Version,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	approval.ResponseTime = timePtr(responseTime)
	return &approval, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
