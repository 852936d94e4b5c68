package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new workflow instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `i.id, i.workflow_id, i.resource_type, i.resource_id, i.current_step_sequence,
	i.status, i.created_by, i.submitter_id, i.university_id, i.company_id, i.version,
	i.created_at, i.updated_at, i.completed_at`

// Create inserts a new instance at version 1
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	ts := now()
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_instances (
			workflow_id, resource_type, resource_id, current_step_sequence, status,
			created_by, submitter_id, university_id, company_id, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		instance.WorkflowID,
		instance.ResourceType,
		instance.ResourceID,
		instance.CurrentStepSequence,
		instance.Status,
		instance.CreatedBy,
		instance.SubmitterID,
		instance.UniversityID,
		instance.CompanyID,
		ts,
		ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("instance for %s/%s: %w", instance.ResourceType, instance.ResourceID, port.ErrDuplicate)
		}
		r.logger.Error("Failed to create workflow instance",
			zap.String("resource_type", instance.ResourceType.String()),
			zap.String("resource_id", instance.ResourceID),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	instance.ID = id
	instance.Version = 1
	instance.CreatedAt = ts
	instance.UpdatedAt = ts
	return nil
}

// GetByID retrieves an instance by ID, or nil if missing
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances i WHERE i.id = ?`, id)

	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow instance: %w", err)
	}
	return instance, nil
}

// GetActiveByResource retrieves the pending or in_progress instance tracking a
// resource, or nil if none exists. Finished instances are ignored.
func (r *InstanceRepository) GetActiveByResource(ctx context.Context, resourceType entity.ResourceType, resourceID string) (*entity.WorkflowInstance, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM workflow_instances i
		WHERE i.resource_type = ? AND i.resource_id = ? AND i.status IN (?, ?)
		ORDER BY i.id DESC
		LIMIT 1
	`, resourceType, resourceID, workflow.StatePending, workflow.StateInProgress)

	instance, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow instance by resource",
			zap.String("resource_type", resourceType.String()),
			zap.String("resource_id", resourceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow instance: %w", err)
	}
	return instance, nil
}

// List returns instances newest first. A non-nil scope keeps only instances the
// caller created or submitted, instances in the caller's university or company,
// and instances whose current step requires the caller's role.
func (r *InstanceRepository) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Status != nil {
		where = append(where, "i.status = ?")
		args = append(args, *filter.Status)
	}
	if filter.ResourceType != nil {
		where = append(where, "i.resource_type = ?")
		args = append(args, *filter.ResourceType)
	}
	if s := filter.Scope; s != nil {
		var visible []string
		if s.UserID != "" {
			visible = append(visible, "i.created_by = ?", "i.submitter_id = ?")
			args = append(args, s.UserID, s.UserID)
		}
		if s.UniversityID != "" {
			visible = append(visible, "i.university_id = ?")
			args = append(args, s.UniversityID)
		}
		if s.CompanyID != "" {
			visible = append(visible, "i.company_id = ?")
			args = append(args, s.CompanyID)
		}
		if s.Role != "" {
			visible = append(visible, `EXISTS (
				SELECT 1 FROM workflow_approvals a
				WHERE a.instance_id = i.id
					AND a.step_sequence = i.current_step_sequence
					AND a.required_role = ?)`)
			args = append(args, s.Role)
		}
		if len(visible) == 0 {
			return []*entity.WorkflowInstance{}, nil
		}
		where = append(where, "("+strings.Join(visible, " OR ")+")")
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances i`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`
	args = append(args, sqliteLimit(filter.Limit), filter.Offset)

	return r.query(ctx, query, args...)
}

// ListActive pages through pending and in_progress instances in id order
func (r *InstanceRepository) ListActive(ctx context.Context, afterID int64, limit int) ([]*entity.WorkflowInstance, error) {
	return r.query(ctx, `
		SELECT `+instanceColumns+`
		FROM workflow_instances i
		WHERE i.status IN (?, ?) AND i.id > ?
		ORDER BY i.id ASC
		LIMIT ?
	`, workflow.StatePending, workflow.StateInProgress, afterID, sqliteLimit(limit))
}

// UpdateState writes the mutable lifecycle fields guarded by the version column
func (r *InstanceRepository) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error {
	ts := now()
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_instances
		SET status = ?, current_step_sequence = ?, completed_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		instance.Status,
		instance.CurrentStepSequence,
		nullTime(instance.CompletedAt),
		ts,
		instance.ID,
		instance.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s/%s already has an active instance: %w",
				instance.ResourceType, instance.ResourceID, workflow.ErrInvalidState)
		}
		r.logger.Error("Failed to update workflow instance",
			zap.Int64("id", instance.ID),
			zap.String("status", instance.Status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update workflow instance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("instance %d changed concurrently (version %d): %w", instance.ID, instance.Version, workflow.ErrInvalidState)
	}

	instance.Version++
	instance.UpdatedAt = ts
	return nil
}

func (r *InstanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowInstance, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflow instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow instances: %w", err)
	}
	defer rows.Close()

	instances := []*entity.WorkflowInstance{}
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(s scanner) (*entity.WorkflowInstance, error) {
	var (
		instance    entity.WorkflowInstance
		completedAt sql.NullTime
	)
	err := s.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.ResourceType,
		&instance.ResourceID,
		&instance.CurrentStepSequence,
		&instance.Status,
		&instance.CreatedBy,
		&instance.SubmitterID,
		&instance.UniversityID,
		&instance.CompanyID,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	instance.CompletedAt = timePtr(completedAt)
	return &instance, nil
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
