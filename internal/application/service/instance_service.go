package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/event"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// CreateInstanceResult reports whether CreateInstance made a new instance
type CreateInstanceResult struct {
	Instance *entity.WorkflowInstance
	Created  bool
}

// CurrentStep is the active step of an instance and its approval rows
type CurrentStep struct {
	Step      *entity.WorkflowStep       `json:"step"`
	Approvals []*entity.WorkflowApproval `json:"approvals"`
}

// InstanceDetail bundles an instance with its current step and the statuses
// an administrator may override it to
type InstanceDetail struct {
	Instance         *entity.WorkflowInstance `json:"instance"`
	CurrentStep      *CurrentStep             `json:"current_step"`
	AllowedOverrides []workflow.State         `json:"allowed_overrides"`
}

// ListInstancesInput filters instance listings
type ListInstancesInput struct {
	Status       string `form:"status" json:"status" validate:"omitempty,oneof=pending in_progress approved rejected cancelled"`
	ResourceType string `form:"resource_type" json:"resource_type" validate:"omitempty,oneof=internship resume"`
	Limit        int    `form:"limit" json:"limit" validate:"min=0"`
	Offset       int    `form:"offset" json:"offset" validate:"min=0"`
}

// UpdateInstanceStatusInput is an administrator's status override
type UpdateInstanceStatusInput struct {
	Status   string `json:"status" validate:"required,oneof=pending cancelled"`
	Comments string `json:"comments" validate:"max=2000"`
}

// InstanceService manages workflow instances
type InstanceService interface {
	// CreateInstance starts tracking a resource. While the resource has an active
	// instance, further calls return it with Created=false; once that instance is
	// rejected or cancelled a new one is created.
	CreateInstance(ctx context.Context, actor entity.Actor, workflowID int64, ref entity.ResourceRef) (*CreateInstanceResult, error)
	// GetInstance returns the instance or nil when it does not exist
	GetInstance(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	GetInstanceDetail(ctx context.Context, actor entity.Actor, id int64) (*InstanceDetail, error)
	GetCurrentStep(ctx context.Context, instanceID int64) (*CurrentStep, error)
	ListInstances(ctx context.Context, actor entity.Actor, input ListInstancesInput) ([]*entity.WorkflowInstance, error)
	// UpdateInstanceStatus cancels or resets an instance on behalf of an administrator
	UpdateInstanceStatus(ctx context.Context, actor entity.Actor, id int64, input UpdateInstanceStatusInput) (*entity.WorkflowInstance, error)
	// CancelForResource cancels the active instance of a deleted resource; nil if there was none
	CancelForResource(ctx context.Context, actor entity.Actor, ref entity.ResourceRef, reason string) (*entity.WorkflowInstance, error)
}

type instanceServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	approvalRepo   port.ApprovalRepository
	historyRepo    port.HistoryRepository
	resolver       port.ResourceResolver
	txManager      port.TransactionManager
	publisher      EventPublisher
	logger         Logger
	now            func() time.Time
}

// NewInstanceService creates a new InstanceService
func NewInstanceService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	approvalRepo port.ApprovalRepository,
	historyRepo port.HistoryRepository,
	resolver port.ResourceResolver,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) InstanceService {
	return &instanceServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		approvalRepo:   approvalRepo,
		historyRepo:    historyRepo,
		resolver:       resolver,
		txManager:      txManager,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *instanceServiceImpl) CreateInstance(ctx context.Context, actor entity.Actor, workflowID int64, ref entity.ResourceRef) (*CreateInstanceResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if ref.IsZero() {
		return nil, workflow.NewValidationError("resource_id", "is required")
	}

	def, err := s.definitionRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if def == nil || !def.IsActive() {
		return nil, fmt.Errorf("active workflow %d: %w", workflowID, workflow.ErrNotFound)
	}
	if def.ResourceType != ref.Type() {
		return nil, workflow.NewValidationError("resource_type",
			fmt.Sprintf("workflow %q tracks %s resources", def.Name, def.ResourceType))
	}

	existing, err := s.instanceRepo.GetActiveByResource(ctx, ref.Type(), ref.ID())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Instance already exists", "instance_id", existing.ID, "resource", ref.String())
		return &CreateInstanceResult{Instance: existing}, nil
	}

	first := def.StepAt(1)
	if len(def.Steps) == 0 || first == nil {
		return nil, fmt.Errorf("workflow %q has no steps: %w", def.Name, workflow.ErrConfiguration)
	}

	scope := &entity.ResourceScope{}
	if s.resolver != nil {
		scope, err = s.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if scope == nil {
			return nil, fmt.Errorf("resource %s: %w", ref, workflow.ErrNotFound)
		}
	}

	instance := &entity.WorkflowInstance{
		WorkflowID:          def.ID,
		ResourceType:        ref.Type(),
		ResourceID:          ref.ID(),
		CurrentStepSequence: 1,
		Status:              workflow.StatePending,
		CreatedBy:           actor.UserID,
		SubmitterID:         scope.SubmitterID,
		UniversityID:        scope.UniversityID,
		CompanyID:           scope.CompanyID,
	}
	approval := &entity.WorkflowApproval{
		StepSequence: first.Sequence,
		RequiredRole: first.RequiredRole,
		Status:       entity.ApprovalStatusPending,
	}

	var reused *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// another request may have created it since the first lookup
		if reused, err = s.instanceRepo.GetActiveByResource(txCtx, ref.Type(), ref.ID()); err != nil || reused != nil {
			return err
		}

		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		approval.InstanceID = instance.ID
		if err := s.approvalRepo.Create(txCtx, approval); err != nil {
			return fmt.Errorf("create first approval: %w", err)
		}

		return s.historyRepo.Append(txCtx, &entity.WorkflowApprovalHistory{
			InstanceID: instance.ID,
			ApprovalID: &approval.ID,
			Action:     entity.HistoryActionCreated,
			ActorID:    actor.UserID,
			NewStatus:  instance.Status.String(),
			CreatedAt:  s.now(),
		})
	})
	if errors.Is(err, port.ErrDuplicate) {
		reused, err = s.instanceRepo.GetActiveByResource(ctx, ref.Type(), ref.ID())
	}
	if err != nil {
		s.logger.Error("Failed to create instance", "error", err, "resource", ref.String(), "workflow_id", workflowID)
		return nil, err
	}
	if reused != nil {
		return &CreateInstanceResult{Instance: reused}, nil
	}

	s.logger.Info("Instance created",
		"instance_id", instance.ID,
		"workflow_id", def.ID,
		"resource", ref.String(),
		"actor_id", actor.UserID,
	)

	publishAll(ctx, s.publisher, []*event.Event{
		event.NewEvent(event.TypeInstanceCreated, instance.ID, map[string]interface{}{
			event.KeyWorkflowID:   def.ID,
			event.KeyResourceType: instance.ResourceType.String(),
			event.KeyResourceID:   instance.ResourceID,
			event.KeyApprovalID:   approval.ID,
			event.KeyStep:         approval.StepSequence,
			event.KeyRequiredRole: approval.RequiredRole.String(),
			event.KeyActorID:      actor.UserID,
			event.KeySubmitterID:  submitterOf(instance),
		}),
	})

	return &CreateInstanceResult{Instance: instance, Created: true}, nil
}

func (s *instanceServiceImpl) GetInstance(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get instance", "error", err, "instance_id", id)
		return nil, err
	}
	return instance, nil
}

func (s *instanceServiceImpl) GetInstanceDetail(ctx context.Context, actor entity.Actor, id int64) (*InstanceDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	instance, err := s.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %d: %w", id, workflow.ErrNotFound)
	}

	current, err := s.currentStep(ctx, instance)
	if err != nil {
		return nil, err
	}
	return &InstanceDetail{
		Instance:         instance,
		CurrentStep:      current,
		AllowedOverrides: workflow.AllowedOverrides(instance.Status),
	}, nil
}

func (s *instanceServiceImpl) GetCurrentStep(ctx context.Context, instanceID int64) (*CurrentStep, error) {
	instance, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %d: %w", instanceID, workflow.ErrNotFound)
	}
	return s.currentStep(ctx, instance)
}

func (s *instanceServiceImpl) currentStep(ctx context.Context, instance *entity.WorkflowInstance) (*CurrentStep, error) {
	def, err := s.definitionRepo.GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("workflow %d of instance %d: %w", instance.WorkflowID, instance.ID, workflow.ErrConfiguration)
	}

	rows, err := s.approvalRepo.ListByInstanceStep(ctx, instance.ID, instance.CurrentStepSequence)
	if err != nil {
		return nil, err
	}

	// cancelled rows were withdrawn by an earlier pass over the step
	approvals := make([]*entity.WorkflowApproval, 0, len(rows))
	for _, a := range rows {
		if a.Status != entity.ApprovalStatusCancelled {
			approvals = append(approvals, a)
		}
	}
	return &CurrentStep{Step: def.StepAt(instance.CurrentStepSequence), Approvals: approvals}, nil
}

func (s *instanceServiceImpl) ListInstances(ctx context.Context, actor entity.Actor, input ListInstancesInput) ([]*entity.WorkflowInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	filter := port.InstanceFilter{}
	filter.Limit, filter.Offset = normalizePage(input.Limit, input.Offset)
	if input.Status != "" {
		status := workflow.State(input.Status)
		filter.Status = &status
	}
	if input.ResourceType != "" {
		rt := entity.ResourceType(input.ResourceType)
		filter.ResourceType = &rt
	}
	if !actor.IsAdmin() {
		filter.Scope = scopeFor(actor)
	}

	return s.instanceRepo.List(ctx, filter)
}

// scopeFor limits a non-admin to their own instances, their organisation's
// instances, and instances waiting on their role
func scopeFor(actor entity.Actor) *port.InstanceScope {
	scope := &port.InstanceScope{UserID: actor.UserID, Role: actor.Role}
	switch actor.Role {
	case entity.RoleUniversity, entity.RoleDirector:
		scope.UniversityID = actor.UniversityID
	case entity.RoleCompany:
		scope.CompanyID = actor.CompanyID
	}
	return scope
}

func (s *instanceServiceImpl) UpdateInstanceStatus(ctx context.Context, actor entity.Actor, id int64, input UpdateInstanceStatusInput) (*entity.WorkflowInstance, error) {
	if err := requireAdmin(actor, "overriding instance status"); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	return s.override(ctx, actor, id, workflow.State(input.Status), input.Comments)
}

func (s *instanceServiceImpl) CancelForResource(ctx context.Context, actor entity.Actor, ref entity.ResourceRef, reason string) (*entity.WorkflowInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	instance, err := s.instanceRepo.GetActiveByResource(ctx, ref.Type(), ref.ID())
	if err != nil {
		return nil, err
	}
	if instance == nil || !instance.Status.IsActive() {
		return nil, nil
	}

	return s.override(ctx, actor, instance.ID, workflow.StateCancelled, reason)
}

// override drives the cancel and reset transitions. Outstanding approvals are
// withdrawn; a reset also opens a fresh step-1 approval.
func (s *instanceServiceImpl) override(ctx context.Context, actor entity.Actor, id int64, target workflow.State, comments string) (*entity.WorkflowInstance, error) {
	trigger, err := workflow.OverrideTrigger(target)
	if err != nil {
		return nil, err
	}

	var (
		instance *entity.WorkflowInstance
		previous workflow.State
		opened   *entity.WorkflowApproval
	)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		instance, err = s.instanceRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if instance == nil {
			return fmt.Errorf("instance %d: %w", id, workflow.ErrNotFound)
		}

		previous = instance.Status
		machine, err := workflow.NewInstanceMachine(previous)
		if err != nil {
			return err
		}
		if !machine.CanFire(trigger) {
			return fmt.Errorf("instance %d cannot move from %s to %s: %w", id, previous, target, workflow.ErrInvalidState)
		}
		if err := machine.Fire(txCtx, trigger); err != nil {
			return fmt.Errorf("instance %d: %v: %w", id, err, workflow.ErrInvalidState)
		}
		next := machine.State()

		ts := s.now()
		if _, err := s.approvalRepo.CancelPending(txCtx, instance.ID, ts); err != nil {
			return err
		}

		action := entity.HistoryActionCancelled
		instance.Status = next
		instance.CompletedAt = &ts
		if trigger == workflow.TriggerReset {
			action = entity.HistoryActionReset
			instance.CurrentStepSequence = 1
			instance.CompletedAt = nil

			def, err := s.definitionRepo.GetByID(txCtx, instance.WorkflowID)
			if err != nil {
				return err
			}
			var first *entity.WorkflowStep
			if def != nil {
				first = def.StepAt(1)
			}
			if first == nil {
				return fmt.Errorf("workflow %d has no steps: %w", instance.WorkflowID, workflow.ErrConfiguration)
			}
			opened = &entity.WorkflowApproval{
				InstanceID:   instance.ID,
				StepSequence: first.Sequence,
				RequiredRole: first.RequiredRole,
				Status:       entity.ApprovalStatusPending,
			}
			if err := s.approvalRepo.Create(txCtx, opened); err != nil {
				return err
			}
		}

		if err := s.instanceRepo.UpdateState(txCtx, instance); err != nil {
			return err
		}

		return s.historyRepo.Append(txCtx, &entity.WorkflowApprovalHistory{
			InstanceID:     instance.ID,
			Action:         action,
			ActorID:        actor.UserID,
			PreviousStatus: previous.String(),
			NewStatus:      next.String(),
			Comments:       comments,
			CreatedAt:      ts,
		})
	})
	if err != nil {
		s.logger.Error("Failed to override instance status", "error", err, "instance_id", id, "target", target)
		return nil, err
	}

	s.logger.Info("Instance status overridden",
		"instance_id", instance.ID,
		"from", previous,
		"to", instance.Status,
		"actor_id", actor.UserID,
	)

	evtType := event.TypeInstanceCancelled
	payload := map[string]interface{}{
		event.KeyResourceType: instance.ResourceType.String(),
		event.KeyResourceID:   instance.ResourceID,
		event.KeyStatus:       instance.Status.String(),
		event.KeyActorID:      actor.UserID,
		event.KeyComments:     comments,
		event.KeySubmitterID:  submitterOf(instance),
	}
	if opened != nil {
		evtType = event.TypeInstanceReset
		payload[event.KeyApprovalID] = opened.ID
		payload[event.KeyStep] = opened.StepSequence
		payload[event.KeyRequiredRole] = opened.RequiredRole.String()
	}
	publishAll(ctx, s.publisher, []*event.Event{event.NewEvent(evtType, instance.ID, payload)})

	return instance, nil
}
