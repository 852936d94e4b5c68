package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// StepInput describes one step of a new workflow
type StepInput struct {
	Sequence     int    `json:"sequence" validate:"gt=0"`
	RequiredRole string `json:"required_role" validate:"required"`
	Name         string `json:"name" validate:"required,max=200"`
}

// CreateWorkflowInput is the payload for creating a workflow definition
type CreateWorkflowInput struct {
	ResourceType string      `json:"resource_type" validate:"required,oneof=internship resume"`
	Name         string      `json:"name" validate:"required,max=200"`
	Description  string      `json:"description" validate:"max=2000"`
	Status       string      `json:"status" validate:"omitempty,oneof=active inactive"`
	Steps        []StepInput `json:"steps" validate:"dive"`
}

// UpdateWorkflowInput carries the mutable definition fields; nil means unchanged
type UpdateWorkflowInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// DefinitionService manages workflow templates
type DefinitionService interface {
	ListWorkflows(ctx context.Context, actor entity.Actor, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error)
	CreateWorkflow(ctx context.Context, actor entity.Actor, input CreateWorkflowInput) (*entity.WorkflowDefinition, error)
	GetWorkflow(ctx context.Context, actor entity.Actor, id int64) (*entity.WorkflowDefinition, error)
	UpdateWorkflow(ctx context.Context, actor entity.Actor, id int64, input UpdateWorkflowInput) (*entity.WorkflowDefinition, error)
	// EnsureWorkflow creates the definition unless one with the same name exists
	EnsureWorkflow(ctx context.Context, actor entity.Actor, input CreateWorkflowInput) (*entity.WorkflowDefinition, bool, error)
}

type definitionServiceImpl struct {
	definitionRepo port.DefinitionRepository
	txManager      port.TransactionManager
	logger         Logger
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(
	definitionRepo port.DefinitionRepository,
	txManager port.TransactionManager,
	logger Logger,
) DefinitionService {
	return &definitionServiceImpl{
		definitionRepo: definitionRepo,
		txManager:      txManager,
		logger:         logger,
	}
}

func (s *definitionServiceImpl) ListWorkflows(ctx context.Context, actor entity.Actor, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error) {
	if err := requireAdmin(actor, "listing workflows"); err != nil {
		return nil, err
	}
	if resourceType != nil && !resourceType.IsValid() {
		return nil, workflow.NewValidationError("resource_type", "must be one of: internship, resume")
	}

	defs, err := s.definitionRepo.List(ctx, resourceType)
	if err != nil {
		s.logger.Error("Failed to list workflows", "error", err)
		return nil, err
	}
	return defs, nil
}

func (s *definitionServiceImpl) CreateWorkflow(ctx context.Context, actor entity.Actor, input CreateWorkflowInput) (*entity.WorkflowDefinition, error) {
	if err := requireAdmin(actor, "creating workflows"); err != nil {
		return nil, err
	}

	def, err := buildDefinition(actor, input)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.definitionRepo.Create(txCtx, def)
	})
	if errors.Is(err, port.ErrDuplicate) {
		return nil, workflow.NewValidationError("name", "a workflow with this name already exists")
	}
	if err != nil {
		s.logger.Error("Failed to create workflow", "error", err, "name", input.Name)
		return nil, err
	}

	s.logger.Info("Workflow created",
		"workflow_id", def.ID,
		"name", def.Name,
		"resource_type", def.ResourceType,
		"steps", len(def.Steps),
		"actor_id", actor.UserID,
	)
	return def, nil
}

func (s *definitionServiceImpl) EnsureWorkflow(ctx context.Context, actor entity.Actor, input CreateWorkflowInput) (*entity.WorkflowDefinition, bool, error) {
	existing, err := s.definitionRepo.GetByName(ctx, strings.TrimSpace(input.Name))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	def, err := s.CreateWorkflow(ctx, actor, input)
	if err != nil {
		return nil, false, err
	}
	return def, true, nil
}

func (s *definitionServiceImpl) GetWorkflow(ctx context.Context, actor entity.Actor, id int64) (*entity.WorkflowDefinition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	def, err := s.definitionRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get workflow", "error", err, "workflow_id", id)
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("workflow %d: %w", id, workflow.ErrNotFound)
	}
	return def, nil
}

func (s *definitionServiceImpl) UpdateWorkflow(ctx context.Context, actor entity.Actor, id int64, input UpdateWorkflowInput) (*entity.WorkflowDefinition, error) {
	if err := requireAdmin(actor, "updating workflows"); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var def *entity.WorkflowDefinition
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		def, err = s.definitionRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("workflow %d: %w", id, workflow.ErrNotFound)
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return workflow.NewValidationError("name", "is required")
			}
			def.Name = name
		}
		if input.Description != nil {
			def.Description = *input.Description
		}
		if input.Status != nil {
			def.Status = *input.Status
		}
		return s.definitionRepo.Update(txCtx, def)
	})
	if errors.Is(err, port.ErrDuplicate) {
		return nil, workflow.NewValidationError("name", "a workflow with this name already exists")
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow updated", "workflow_id", def.ID, "status", def.Status, "actor_id", actor.UserID)
	return def, nil
}

// buildDefinition validates input and orders steps. Sequences must run 1..n without gaps.
func buildDefinition(actor entity.Actor, input CreateWorkflowInput) (*entity.WorkflowDefinition, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	verr := &workflow.ValidationError{}
	steps := make([]entity.WorkflowStep, 0, len(input.Steps))
	for i, in := range input.Steps {
		role := entity.Role(strings.TrimSpace(in.RequiredRole))
		if !role.IsValid() || role == entity.RoleSystem {
			verr.Add(fmt.Sprintf("steps[%d].required_role", i), fmt.Sprintf("unknown role %q", in.RequiredRole))
		}
		steps = append(steps, entity.WorkflowStep{
			Sequence:     in.Sequence,
			RequiredRole: role,
			Name:         strings.TrimSpace(in.Name),
		})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	for i, step := range steps {
		if step.Sequence != i+1 {
			verr.Add("steps", "sequence numbers must be unique and contiguous starting at 1")
			break
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	status := input.Status
	if status == "" {
		status = entity.DefinitionStatusActive
	}

	return &entity.WorkflowDefinition{
		ResourceType: entity.ResourceType(input.ResourceType),
		Name:         input.Name,
		Description:  input.Description,
		Status:       status,
		CreatedBy:    actor.UserID,
		Steps:        steps,
	}, nil
}
