package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/event"
	"github.com/garyjia/internflow/internal/domain/permission"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// Decision actions accepted by Decide
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// DecisionResult is the state after an approve or reject
type DecisionResult struct {
	Approval *entity.WorkflowApproval `json:"approval"`
	Instance *entity.WorkflowInstance `json:"instance"`
	// NextApproval is set when the instance advanced to another step
	NextApproval *entity.WorkflowApproval `json:"next_approval,omitempty"`
}

// ApprovalDetail is an approval with its context and the caller's permissions
type ApprovalDetail struct {
	Approval    *entity.WorkflowApproval `json:"approval"`
	Step        *entity.WorkflowStep     `json:"step"`
	Instance    *entity.WorkflowInstance `json:"instance"`
	Permissions permission.Permissions   `json:"permissions"`
}

// ApprovalService records decisions and comments and drives instances through their steps
type ApprovalService interface {
	Approve(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*DecisionResult, error)
	Reject(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*DecisionResult, error)
	// Decide routes action ("approve" or "reject") to Approve or Reject
	Decide(ctx context.Context, actor entity.Actor, approvalID int64, action, comments string) (*DecisionResult, error)
	// AddComment appends a comment to the timeline at any approval status
	AddComment(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*entity.WorkflowApprovalHistory, error)
	GetApproval(ctx context.Context, actor entity.Actor, approvalID int64) (*ApprovalDetail, error)
	ListPendingApprovals(ctx context.Context, actor entity.Actor, limit, offset int) ([]*entity.WorkflowApproval, error)
	CheckApprovalPermissions(ctx context.Context, approvalID int64, actor entity.Actor) (permission.Permissions, error)
}

type approvalServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	approvalRepo   port.ApprovalRepository
	historyRepo    port.HistoryRepository
	txManager      port.TransactionManager
	policy         permission.Policy
	publisher      EventPublisher
	logger         Logger
	now            func() time.Time
}

// NewApprovalService creates a new ApprovalService. A nil policy falls back to the role policy.
func NewApprovalService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	approvalRepo port.ApprovalRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	policy permission.Policy,
	publisher EventPublisher,
	logger Logger,
) ApprovalService {
	if policy == nil {
		policy = permission.NewRolePolicy()
	}
	return &approvalServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		approvalRepo:   approvalRepo,
		historyRepo:    historyRepo,
		txManager:      txManager,
		policy:         policy,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *approvalServiceImpl) Approve(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*DecisionResult, error) {
	return s.decide(ctx, actor, approvalID, entity.ApprovalStatusApproved, comments)
}

func (s *approvalServiceImpl) Reject(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*DecisionResult, error) {
	return s.decide(ctx, actor, approvalID, entity.ApprovalStatusRejected, comments)
}

func (s *approvalServiceImpl) Decide(ctx context.Context, actor entity.Actor, approvalID int64, action, comments string) (*DecisionResult, error) {
	switch action {
	case ActionApprove:
		return s.Approve(ctx, actor, approvalID, comments)
	case ActionReject:
		return s.Reject(ctx, actor, approvalID, comments)
	default:
		return nil, workflow.NewValidationError("action", "must be one of: approve reject")
	}
}

func (s *approvalServiceImpl) decide(ctx context.Context, actor entity.Actor, approvalID int64, outcome entity.ApprovalStatus, comments string) (*DecisionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateComments(comments, false); err != nil {
		return nil, err
	}

	capability := permission.CapabilityApprove
	historyAction := entity.HistoryActionApproved
	if outcome == entity.ApprovalStatusRejected {
		capability = permission.CapabilityReject
		historyAction = entity.HistoryActionRejected
	}

	result := &DecisionResult{}
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = events[:0]

		approval, err := s.approvalRepo.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if approval == nil {
			return fmt.Errorf("approval %d: %w", approvalID, workflow.ErrNotFound)
		}
		if !approval.IsPending() {
			return fmt.Errorf("approval %d is %s: %w", approvalID, approval.Status, workflow.ErrInvalidState)
		}

		instance, err := s.instanceRepo.GetByID(txCtx, approval.InstanceID)
		if err != nil {
			return err
		}
		if instance == nil {
			return fmt.Errorf("instance %d of approval %d: %w", approval.InstanceID, approvalID, workflow.ErrNotFound)
		}
		if !instance.Status.IsActive() || instance.CurrentStepSequence != approval.StepSequence {
			return fmt.Errorf("instance %d is %s at step %d: %w",
				instance.ID, instance.Status, instance.CurrentStepSequence, workflow.ErrInvalidState)
		}

		caps := s.policy.Capabilities(subjectOf(actor), targetOf(approval, instance))
		if !caps.Has(capability) {
			return fmt.Errorf("user %s (%s) may not %s approval %d: %w",
				actor.UserID, actor.Role, capability, approvalID, workflow.ErrForbidden)
		}

		def, err := s.definitionRepo.GetByID(txCtx, instance.WorkflowID)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("workflow %d of instance %d: %w", instance.WorkflowID, instance.ID, workflow.ErrConfiguration)
		}

		trigger := workflow.TriggerReject
		if outcome == entity.ApprovalStatusApproved {
			trigger = workflow.TriggerApprove
		}

		positioned := workflow.WithStepPosition(txCtx, instance.CurrentStepSequence, len(def.Steps))
		state, err := workflow.Transition(positioned, instance.Status, trigger)
		if errors.Is(err, workflow.ErrGuardFailed) {
			return fmt.Errorf("instance %d is at step %d of %d: %w",
				instance.ID, instance.CurrentStepSequence, len(def.Steps), workflow.ErrConfiguration)
		}
		if err != nil {
			return fmt.Errorf("instance %d: %v: %w", instance.ID, err, workflow.ErrInvalidState)
		}

		var next *entity.WorkflowStep
		if trigger == workflow.TriggerApprove && state == workflow.StateInProgress {
			if next = def.StepAt(instance.CurrentStepSequence + 1); next == nil {
				return fmt.Errorf("workflow %d is missing step %d: %w",
					def.ID, instance.CurrentStepSequence+1, workflow.ErrConfiguration)
			}
		}

		ts := s.now()
		decided, err := s.approvalRepo.Decide(txCtx, approvalID, port.Decision{
			Status:     outcome,
			ApproverID: actor.UserID,
			Comments:   comments,
			At:         ts,
		})
		if err != nil {
			return err
		}

		if err := s.historyRepo.Append(txCtx, &entity.WorkflowApprovalHistory{
			InstanceID:     instance.ID,
			ApprovalID:     &decided.ID,
			Action:         historyAction,
			ActorID:        actor.UserID,
			PreviousStatus: string(entity.ApprovalStatusPending),
			NewStatus:      string(outcome),
			Comments:       comments,
			CreatedAt:      ts,
		}); err != nil {
			return err
		}

		instance.Status = state
		if next != nil {
			instance.CurrentStepSequence = next.Sequence
			result.NextApproval = &entity.WorkflowApproval{
				InstanceID:   instance.ID,
				StepSequence: next.Sequence,
				RequiredRole: next.RequiredRole,
				Status:       entity.ApprovalStatusPending,
			}
			if err := s.approvalRepo.Create(txCtx, result.NextApproval); err != nil {
				return err
			}
		}
		if state.IsTerminal() {
			instance.CompletedAt = &ts
		}
		if err := s.instanceRepo.UpdateState(txCtx, instance); err != nil {
			return err
		}

		result.Approval = decided
		result.Instance = instance
		events = s.decisionEvents(actor, decided, instance, result.NextApproval)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record decision",
			"error", err,
			"approval_id", approvalID,
			"outcome", outcome,
			"actor_id", actor.UserID,
		)
		return nil, err
	}

	s.logger.Info("Decision recorded",
		"approval_id", approvalID,
		"outcome", outcome,
		"instance_id", result.Instance.ID,
		"instance_status", result.Instance.Status,
		"step", result.Instance.CurrentStepSequence,
	)
	publishAll(ctx, s.publisher, events)
	return result, nil
}

func (s *approvalServiceImpl) decisionEvents(actor entity.Actor, approval *entity.WorkflowApproval, instance *entity.WorkflowInstance, next *entity.WorkflowApproval) []*event.Event {
	base := map[string]interface{}{
		event.KeyWorkflowID:   instance.WorkflowID,
		event.KeyResourceType: instance.ResourceType.String(),
		event.KeyResourceID:   instance.ResourceID,
		event.KeyApprovalID:   approval.ID,
		event.KeyStep:         approval.StepSequence,
		event.KeyRequiredRole: approval.RequiredRole.String(),
		event.KeyActorID:      actor.UserID,
		event.KeyStatus:       instance.Status.String(),
		event.KeyComments:     approval.Comments,
		event.KeySubmitterID:  submitterOf(instance),
	}

	approvalType := event.TypeApprovalApproved
	if approval.Status == entity.ApprovalStatusRejected {
		approvalType = event.TypeApprovalRejected
	}
	first := event.NewEvent(approvalType, instance.ID, base)
	events := []*event.Event{first}

	switch {
	case next != nil:
		events = append(events, event.NewEventWithCorrelation(event.TypeInstanceAdvanced, instance.ID, map[string]interface{}{
			event.KeyWorkflowID:   instance.WorkflowID,
			event.KeyResourceType: instance.ResourceType.String(),
			event.KeyResourceID:   instance.ResourceID,
			event.KeyApprovalID:   next.ID,
			event.KeyStep:         next.StepSequence,
			event.KeyRequiredRole: next.RequiredRole.String(),
			event.KeyActorID:      actor.UserID,
			event.KeyStatus:       instance.Status.String(),
			event.KeySubmitterID:  submitterOf(instance),
		}, first.CorrelationID))
	case instance.Status == workflow.StateApproved:
		events = append(events, event.NewEventWithCorrelation(event.TypeInstanceApproved, instance.ID, base, first.CorrelationID))
	case instance.Status == workflow.StateRejected:
		events = append(events, event.NewEventWithCorrelation(event.TypeInstanceRejected, instance.ID, base, first.CorrelationID))
	}
	return events
}

func (s *approvalServiceImpl) AddComment(ctx context.Context, actor entity.Actor, approvalID int64, comments string) (*entity.WorkflowApprovalHistory, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateComments(comments, true); err != nil {
		return nil, err
	}

	var (
		record   *entity.WorkflowApprovalHistory
		instance *entity.WorkflowInstance
		approval *entity.WorkflowApproval
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		approval, instance, err = s.load(txCtx, approvalID)
		if err != nil {
			return err
		}

		caps := s.policy.Capabilities(subjectOf(actor), targetOf(approval, instance))
		if !caps.Has(permission.CapabilityComment) {
			return fmt.Errorf("user %s (%s) may not comment on approval %d: %w",
				actor.UserID, actor.Role, approvalID, workflow.ErrForbidden)
		}

		record = &entity.WorkflowApprovalHistory{
			InstanceID:     instance.ID,
			ApprovalID:     &approval.ID,
			Action:         entity.HistoryActionCommented,
			ActorID:        actor.UserID,
			PreviousStatus: string(approval.Status),
			NewStatus:      string(approval.Status),
			Comments:       comments,
			CreatedAt:      s.now(),
		}
		return s.historyRepo.Append(txCtx, record)
	})
	if err != nil {
		s.logger.Error("Failed to add comment", "error", err, "approval_id", approvalID, "actor_id", actor.UserID)
		return nil, err
	}

	s.logger.Info("Comment added", "approval_id", approvalID, "instance_id", instance.ID, "actor_id", actor.UserID)

	publishAll(ctx, s.publisher, []*event.Event{
		event.NewEvent(event.TypeApprovalCommented, instance.ID, map[string]interface{}{
			event.KeyResourceType: instance.ResourceType.String(),
			event.KeyResourceID:   instance.ResourceID,
			event.KeyApprovalID:   approval.ID,
			event.KeyStep:         approval.StepSequence,
			event.KeyRequiredRole: approval.RequiredRole.String(),
			event.KeyActorID:      actor.UserID,
			event.KeyStatus:       string(approval.Status),
			event.KeyComments:     comments,
			event.KeySubmitterID:  submitterOf(instance),
		}),
	})
	return record, nil
}

func (s *approvalServiceImpl) GetApproval(ctx context.Context, actor entity.Actor, approvalID int64) (*ApprovalDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	approval, instance, err := s.load(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	def, err := s.definitionRepo.GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return nil, err
	}
	var step *entity.WorkflowStep
	if def != nil {
		step = def.StepAt(approval.StepSequence)
	}

	return &ApprovalDetail{
		Approval:    approval,
		Step:        step,
		Instance:    instance,
		Permissions: s.policy.Capabilities(subjectOf(actor), targetOf(approval, instance)).ToPermissions(),
	}, nil
}

func (s *approvalServiceImpl) ListPendingApprovals(ctx context.Context, actor entity.Actor, limit, offset int) ([]*entity.WorkflowApproval, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	filter := port.PendingFilter{}
	filter.Limit, filter.Offset = normalizePage(limit, offset)
	if !actor.IsAdmin() {
		role := actor.Role
		scope := scopeFor(actor)
		filter.Role = &role
		filter.UniversityID = scope.UniversityID
		filter.CompanyID = scope.CompanyID
	}
	return s.approvalRepo.ListPending(ctx, filter)
}

func (s *approvalServiceImpl) CheckApprovalPermissions(ctx context.Context, approvalID int64, actor entity.Actor) (permission.Permissions, error) {
	approval, instance, err := s.load(ctx, approvalID)
	if err != nil {
		return permission.Permissions{}, err
	}
	return s.policy.Capabilities(subjectOf(actor), targetOf(approval, instance)).ToPermissions(), nil
}

func (s *approvalServiceImpl) load(ctx context.Context, approvalID int64) (*entity.WorkflowApproval, *entity.WorkflowInstance, error) {
	approval, err := s.approvalRepo.GetByID(ctx, approvalID)
	if err != nil {
		return nil, nil, err
	}
	if approval == nil {
		return nil, nil, fmt.Errorf("approval %d: %w", approvalID, workflow.ErrNotFound)
	}

	instance, err := s.instanceRepo.GetByID(ctx, approval.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	if instance == nil {
		return nil, nil, fmt.Errorf("instance %d of approval %d: %w", approval.InstanceID, approvalID, workflow.ErrNotFound)
	}
	return approval, instance, nil
}

func subjectOf(actor entity.Actor) permission.Subject {
	return permission.Subject{UserID: actor.UserID, Role: actor.Role}
}

func targetOf(approval *entity.WorkflowApproval, instance *entity.WorkflowInstance) permission.Target {
	return permission.Target{
		RequiredRole:   approval.RequiredRole,
		ApprovalStatus: approval.Status,
		SubmitterID:    submitterOf(instance),
	}
}
