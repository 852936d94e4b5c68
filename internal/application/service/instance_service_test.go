package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/event"
	"github.com/garyjia/internflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instanceFixture struct {
	defs      *mockDefinitionRepo
	instances *mockInstanceRepo
	approvals *mockApprovalRepo
	history   *mockHistoryRepo
	resolver  *mockResolver
	publisher *mockPublisher
	svc       InstanceService
}

func newInstanceFixture() *instanceFixture {
	f := &instanceFixture{
		defs: &mockDefinitionRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
				if id == 7 {
					return twoStepDefinition(), nil
				}
				return nil, nil
			},
		},
		instances: &mockInstanceRepo{},
		approvals: &mockApprovalRepo{},
		history:   &mockHistoryRepo{},
		resolver:  &mockResolver{},
		publisher: &mockPublisher{},
	}
	f.build()
	return f
}

func (f *instanceFixture) build() {
	f.svc = NewInstanceService(f.defs, f.instances, f.approvals, f.history, f.resolver, &mockTxManager{}, f.publisher, &mockLogger{})
}

func TestInstanceService_CreateInstance(t *testing.T) {
	f := newInstanceFixture()
	var createdApproval *entity.WorkflowApproval
	f.instances.createFunc = func(ctx context.Context, instance *entity.WorkflowInstance) error {
		instance.ID = 42
		return nil
	}
	f.approvals.createFunc = func(ctx context.Context, approval *entity.WorkflowApproval) error {
		approval.ID = 501
		createdApproval = approval
		return nil
	}

	result, err := f.svc.CreateInstance(context.Background(), studentActor, 7, entity.InternshipRef("R1"))
	require.NoError(t, err)
	assert.True(t, result.Created)

	inst := result.Instance
	assert.Equal(t, int64(42), inst.ID)
	assert.Equal(t, workflow.StatePending, inst.Status)
	assert.Equal(t, 1, inst.CurrentStepSequence)
	assert.Equal(t, "student-1", inst.SubmitterID)
	assert.Equal(t, "uni-1", inst.UniversityID)
	assert.Equal(t, "co-1", inst.CompanyID)

	require.NotNil(t, createdApproval)
	assert.Equal(t, int64(42), createdApproval.InstanceID)
	assert.Equal(t, entity.RoleDirector, createdApproval.RequiredRole)
	assert.Equal(t, entity.ApprovalStatusPending, createdApproval.Status)

	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.Equal(t, entity.HistoryActionCreated, rec.Action)
	assert.Equal(t, "", rec.PreviousStatus)
	assert.Equal(t, "pending", rec.NewStatus)
	require.NotNil(t, rec.ApprovalID)
	assert.Equal(t, int64(501), *rec.ApprovalID)

	assert.Equal(t, []event.Type{event.TypeInstanceCreated}, f.publisher.types())
}

func TestInstanceService_CreateInstanceIsIdempotent(t *testing.T) {
	f := newInstanceFixture()
	existing := &entity.WorkflowInstance{ID: 42, WorkflowID: 7, ResourceType: entity.ResourceTypeInternship, ResourceID: "R1", Status: workflow.StateInProgress}
	f.instances.getActiveByResourceFunc = func(ctx context.Context, rt entity.ResourceType, id string) (*entity.WorkflowInstance, error) {
		return existing, nil
	}
	f.instances.createFunc = func(ctx context.Context, instance *entity.WorkflowInstance) error {
		t.Fatal("create must not be called for an existing resource")
		return nil
	}

	result, err := f.svc.CreateInstance(context.Background(), studentActor, 7, entity.InternshipRef("R1"))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Same(t, existing, result.Instance)
	assert.Empty(t, f.history.records)
	assert.Empty(t, f.publisher.types())
}

func TestInstanceService_CreateInstanceLosesRace(t *testing.T) {
	f := newInstanceFixture()
	winner := &entity.WorkflowInstance{ID: 43, ResourceType: entity.ResourceTypeInternship, ResourceID: "R1"}
	lookups := 0
	f.instances.getActiveByResourceFunc = func(ctx context.Context, rt entity.ResourceType, id string) (*entity.WorkflowInstance, error) {
		lookups++
		if lookups < 3 {
			return nil, nil
		}
		return winner, nil
	}
	f.instances.createFunc = func(ctx context.Context, instance *entity.WorkflowInstance) error {
		return port.ErrDuplicate
	}

	result, err := f.svc.CreateInstance(context.Background(), studentActor, 7, entity.InternshipRef("R1"))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, int64(43), result.Instance.ID)
	assert.Empty(t, f.publisher.types())
}

func TestInstanceService_CreateInstanceErrors(t *testing.T) {
	tests := []struct {
		name       string
		actor      entity.Actor
		workflowID int64
		ref        entity.ResourceRef
		setup      func(f *instanceFixture)
		wantErr    error
	}{
		{name: "anonymous", actor: entity.Actor{}, workflowID: 7, ref: entity.InternshipRef("R1"), wantErr: workflow.ErrUnauthenticated},
		{name: "zero ref", actor: studentActor, workflowID: 7, wantErr: workflow.ErrValidation},
		{name: "missing workflow", actor: studentActor, workflowID: 99, ref: entity.InternshipRef("R1"), wantErr: workflow.ErrNotFound},
		{name: "type mismatch", actor: studentActor, workflowID: 7, ref: entity.ResumeRef("stu-1"), wantErr: workflow.ErrValidation},
		{
			name: "inactive workflow", actor: studentActor, workflowID: 7, ref: entity.InternshipRef("R1"),
			setup: func(f *instanceFixture) {
				f.defs.getByIDFunc = func(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
					def := twoStepDefinition()
					def.Status = entity.DefinitionStatusInactive
					return def, nil
				}
			},
			wantErr: workflow.ErrNotFound,
		},
		{
			name: "no steps", actor: studentActor, workflowID: 7, ref: entity.InternshipRef("R1"),
			setup: func(f *instanceFixture) {
				f.defs.getByIDFunc = func(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
					def := twoStepDefinition()
					def.Steps = nil
					return def, nil
				}
			},
			wantErr: workflow.ErrConfiguration,
		},
		{
			name: "resource missing", actor: studentActor, workflowID: 7, ref: entity.InternshipRef("ghost"),
			setup: func(f *instanceFixture) {
				f.resolver.resolveFunc = func(ctx context.Context, ref entity.ResourceRef) (*entity.ResourceScope, error) {
					return nil, nil
				}
			},
			wantErr: workflow.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInstanceFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.CreateInstance(context.Background(), tt.actor, tt.workflowID, tt.ref)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.history.records)
		})
	}
}

func TestInstanceService_GetInstanceDetail(t *testing.T) {
	f := newInstanceFixture()
	f.instances.getByIDFunc = func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
		if id != 42 {
			return nil, nil
		}
		return &entity.WorkflowInstance{ID: 42, WorkflowID: 7, CurrentStepSequence: 2, Status: workflow.StateInProgress}, nil
	}
	f.approvals.listByInstanceStepFunc = func(ctx context.Context, instanceID int64, step int) ([]*entity.WorkflowApproval, error) {
		return []*entity.WorkflowApproval{
			{ID: 8, InstanceID: instanceID, StepSequence: step, RequiredRole: entity.RoleAdmin, Status: entity.ApprovalStatusCancelled},
			{ID: 9, InstanceID: instanceID, StepSequence: step, RequiredRole: entity.RoleAdmin, Status: entity.ApprovalStatusPending},
		}, nil
	}

	detail, err := f.svc.GetInstanceDetail(context.Background(), studentActor, 42)
	require.NoError(t, err)
	require.NotNil(t, detail.CurrentStep.Step)
	assert.Equal(t, entity.RoleAdmin, detail.CurrentStep.Step.RequiredRole)
	require.Len(t, detail.CurrentStep.Approvals, 1, "withdrawn approvals are not part of the current step")
	assert.Equal(t, int64(9), detail.CurrentStep.Approvals[0].ID)
	assert.Equal(t, 2, detail.CurrentStep.Approvals[0].StepSequence)
	assert.Equal(t, []workflow.State{workflow.StateCancelled, workflow.StatePending}, detail.AllowedOverrides)

	missing, err := f.svc.GetInstance(context.Background(), 41)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = f.svc.GetInstanceDetail(context.Background(), studentActor, 41)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = f.svc.GetCurrentStep(context.Background(), 41)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestInstanceService_ListInstancesScope(t *testing.T) {
	tests := []struct {
		name      string
		actor     entity.Actor
		wantScope *port.InstanceScope
	}{
		{name: "admin sees all", actor: adminActor},
		{name: "super admin sees all", actor: entity.Actor{UserID: "root", Role: entity.RoleSuperAdmin}},
		{
			name:      "student",
			actor:     studentActor,
			wantScope: &port.InstanceScope{UserID: "student-1", Role: entity.RoleStudent},
		},
		{
			name:      "director scoped to university",
			actor:     directorActor,
			wantScope: &port.InstanceScope{UserID: "director-1", Role: entity.RoleDirector, UniversityID: "uni-1"},
		},
		{
			name:      "company scoped to company",
			actor:     companyActor,
			wantScope: &port.InstanceScope{UserID: "company-1", Role: entity.RoleCompany, CompanyID: "co-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInstanceFixture()
			var got port.InstanceFilter
			f.instances.listFunc = func(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
				got = filter
				return nil, nil
			}

			_, err := f.svc.ListInstances(context.Background(), tt.actor, ListInstancesInput{Status: "pending", Limit: 500})
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, got.Scope)
			assert.Equal(t, maxPageSize, got.Limit)
			require.NotNil(t, got.Status)
			assert.Equal(t, workflow.StatePending, *got.Status)
		})
	}

	f := newInstanceFixture()
	_, err := f.svc.ListInstances(context.Background(), studentActor, ListInstancesInput{Status: "done"})
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestInstanceService_UpdateInstanceStatus(t *testing.T) {
	tests := []struct {
		name         string
		actor        entity.Actor
		current      workflow.State
		target       string
		wantErr      error
		wantStatus   workflow.State
		wantAction   entity.HistoryAction
		wantEvent    event.Type
		wantApproval bool
	}{
		{name: "cancel pending", actor: adminActor, current: workflow.StatePending, target: "cancelled",
			wantStatus: workflow.StateCancelled, wantAction: entity.HistoryActionCancelled, wantEvent: event.TypeInstanceCancelled},
		{name: "cancel in progress", actor: adminActor, current: workflow.StateInProgress, target: "cancelled",
			wantStatus: workflow.StateCancelled, wantAction: entity.HistoryActionCancelled, wantEvent: event.TypeInstanceCancelled},
		{name: "reset rejected", actor: adminActor, current: workflow.StateRejected, target: "pending",
			wantStatus: workflow.StatePending, wantAction: entity.HistoryActionReset, wantEvent: event.TypeInstanceReset, wantApproval: true},
		{name: "reset cancelled", actor: adminActor, current: workflow.StateCancelled, target: "pending",
			wantStatus: workflow.StatePending, wantAction: entity.HistoryActionReset, wantEvent: event.TypeInstanceReset, wantApproval: true},
		{name: "cannot cancel approved", actor: adminActor, current: workflow.StateApproved, target: "cancelled", wantErr: workflow.ErrInvalidState},
		{name: "cannot reset pending", actor: adminActor, current: workflow.StatePending, target: "pending", wantErr: workflow.ErrInvalidState},
		{name: "cannot force approved", actor: adminActor, current: workflow.StatePending, target: "approved", wantErr: workflow.ErrValidation},
		{name: "director forbidden", actor: directorActor, current: workflow.StatePending, target: "cancelled", wantErr: workflow.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInstanceFixture()
			f.instances.getByIDFunc = func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
				return &entity.WorkflowInstance{ID: id, WorkflowID: 7, CurrentStepSequence: 2, Status: tt.current, SubmitterID: "student-1"}, nil
			}
			cancelled := false
			f.approvals.cancelPendingFunc = func(ctx context.Context, instanceID int64, at time.Time) (int64, error) {
				cancelled = true
				return 1, nil
			}
			var opened *entity.WorkflowApproval
			f.approvals.createFunc = func(ctx context.Context, approval *entity.WorkflowApproval) error {
				approval.ID = 77
				opened = approval
				return nil
			}

			inst, err := f.svc.UpdateInstanceStatus(context.Background(), tt.actor, 42,
				UpdateInstanceStatusInput{Status: tt.target, Comments: "admin override"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.history.records)
				assert.Empty(t, f.publisher.types())
				return
			}

			require.NoError(t, err)
			assert.True(t, cancelled)
			assert.Equal(t, tt.wantStatus, inst.Status)
			require.Len(t, f.history.records, 1)
			assert.Equal(t, tt.wantAction, f.history.records[0].Action)
			assert.Equal(t, string(tt.current), f.history.records[0].PreviousStatus)
			assert.Equal(t, "admin override", f.history.records[0].Comments)
			assert.Equal(t, []event.Type{tt.wantEvent}, f.publisher.types())

			if tt.wantApproval {
				require.NotNil(t, opened)
				assert.Equal(t, 1, opened.StepSequence)
				assert.Equal(t, entity.RoleDirector, opened.RequiredRole)
				assert.Equal(t, 1, inst.CurrentStepSequence)
				assert.Nil(t, inst.CompletedAt)
			} else {
				assert.Nil(t, opened)
				assert.NotNil(t, inst.CompletedAt)
			}
		})
	}
}

func TestInstanceService_CancelForResource(t *testing.T) {
	f := newInstanceFixture()
	active := &entity.WorkflowInstance{ID: 42, WorkflowID: 7, Status: workflow.StateInProgress, CurrentStepSequence: 2}
	f.instances.getActiveByResourceFunc = func(ctx context.Context, rt entity.ResourceType, id string) (*entity.WorkflowInstance, error) {
		if id == "R1" {
			return active, nil
		}
		if id == "R2" {
			return &entity.WorkflowInstance{ID: 43, Status: workflow.StateApproved}, nil
		}
		return nil, nil
	}
	f.instances.getByIDFunc = func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
		copied := *active
		return &copied, nil
	}

	system := entity.SystemActor("sweeper")
	inst, err := f.svc.CancelForResource(context.Background(), system, entity.InternshipRef("R1"), "resource deleted")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, workflow.StateCancelled, inst.Status)
	require.Len(t, f.history.records, 1)
	assert.Equal(t, "system:sweeper", f.history.records[0].ActorID)

	inst, err = f.svc.CancelForResource(context.Background(), system, entity.InternshipRef("R2"), "resource deleted")
	require.NoError(t, err)
	assert.Nil(t, inst)

	inst, err = f.svc.CancelForResource(context.Background(), system, entity.InternshipRef("R3"), "resource deleted")
	require.NoError(t, err)
	assert.Nil(t, inst)
	assert.Len(t, f.history.records, 1)
}
