package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"go.uber.org/zap"
)

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new workflow definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

const definitionColumns = `id, resource_type, name, description, status, created_by, created_at, updated_at`

// Create inserts the definition and its steps. Callers wrap it in a transaction.
func (r *DefinitionRepository) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	ts := now()
	exec := executor(ctx, r.db)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO workflow_definitions (
			resource_type, name, description, status, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		def.ResourceType,
		def.Name,
		def.Description,
		def.Status,
		def.CreatedBy,
		ts,
		ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("workflow %q: %w", def.Name, port.ErrDuplicate)
		}
		r.logger.Error("Failed to create workflow definition", zap.String("name", def.Name), zap.Error(err))
		return fmt.Errorf("failed to create workflow definition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	def.ID = id
	def.CreatedAt = ts
	def.UpdatedAt = ts

	for i := range def.Steps {
		step := &def.Steps[i]
		step.WorkflowID = id
		step.CreatedAt = ts

		res, err := exec.ExecContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, sequence, required_role, name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, step.Sequence, step.RequiredRole, step.Name, ts)
		if err != nil {
			r.logger.Error("Failed to create workflow step",
				zap.Int64("workflow_id", id),
				zap.Int("sequence", step.Sequence),
				zap.Error(err))
			return fmt.Errorf("failed to create workflow step %d: %w", step.Sequence, err)
		}
		if step.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	return nil
}

// GetByID returns the definition with its ordered steps, or nil if missing
func (r *DefinitionRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM workflow_definitions WHERE id = ?`, id)
	return r.getOne(ctx, row, zap.Int64("id", id))
}

// GetByName returns the definition with the given unique name, or nil if missing
func (r *DefinitionRepository) GetByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM workflow_definitions WHERE name = ?`, name)
	return r.getOne(ctx, row, zap.String("name", name))
}

func (r *DefinitionRepository) getOne(ctx context.Context, row *sql.Row, key zap.Field) (*entity.WorkflowDefinition, error) {
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow definition", key, zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow definition: %w", err)
	}

	if def.Steps, err = r.loadSteps(ctx, def.ID); err != nil {
		return nil, err
	}
	return def, nil
}

// List returns definitions newest first, optionally filtered by resource type
func (r *DefinitionRepository) List(ctx context.Context, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions`
	var args []interface{}
	if resourceType != nil {
		query += ` WHERE resource_type = ?`
		args = append(args, *resourceType)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflow definitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		defs = append(defs, def)
	}
	// close before loading steps; a single-connection pool would otherwise block
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, def := range defs {
		if def.Steps, err = r.loadSteps(ctx, def.ID); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// Update writes the mutable fields; steps are never touched
func (r *DefinitionRepository) Update(ctx context.Context, def *entity.WorkflowDefinition) error {
	ts := now()
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_definitions
		SET name = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, def.Name, def.Description, def.Status, ts, def.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("workflow %q: %w", def.Name, port.ErrDuplicate)
		}
		r.logger.Error("Failed to update workflow definition", zap.Int64("id", def.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow definition: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow definition %d not found", def.ID)
	}
	def.UpdatedAt = ts
	return nil
}

func (r *DefinitionRepository) loadSteps(ctx context.Context, workflowID int64) ([]entity.WorkflowStep, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, workflow_id, sequence, required_role, name, created_at
		FROM workflow_steps
		WHERE workflow_id = ?
		ORDER BY sequence ASC
	`, workflowID)
	if err != nil {
		r.logger.Error("Failed to load workflow steps", zap.Int64("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to load workflow steps: %w", err)
	}
	defer rows.Close()

	steps := []entity.WorkflowStep{}
	for rows.Next() {
		var step entity.WorkflowStep
		if err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.Sequence,
			&step.RequiredRole,
			&step.Name,
			&step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanDefinition(s scanner) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	err := s.Scan(
		&def.ID,
		&def.ResourceType,
		&def.Name,
		&def.Description,
		&def.Status,
		&def.CreatedBy,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
