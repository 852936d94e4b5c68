package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/event"
)

type mockDefinitionRepo struct {
	createFunc    func(ctx context.Context, def *entity.WorkflowDefinition) error
	getByIDFunc   func(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	getByNameFunc func(ctx context.Context, name string) (*entity.WorkflowDefinition, error)
	listFunc      func(ctx context.Context, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error)
	updateFunc    func(ctx context.Context, def *entity.WorkflowDefinition) error
}

func (m *mockDefinitionRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, def)
	}
	def.ID = 1
	return nil
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	if m.getByNameFunc != nil {
		return m.getByNameFunc(ctx, name)
	}
	return nil, nil
}

func (m *mockDefinitionRepo) List(ctx context.Context, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, resourceType)
	}
	return []*entity.WorkflowDefinition{}, nil
}

func (m *mockDefinitionRepo) Update(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, def)
	}
	return nil
}

type mockInstanceRepo struct {
	createFunc              func(ctx context.Context, instance *entity.WorkflowInstance) error
	getByIDFunc             func(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	getActiveByResourceFunc func(ctx context.Context, resourceType entity.ResourceType, resourceID string) (*entity.WorkflowInstance, error)
	listFunc                func(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error)
	listActiveFunc          func(ctx context.Context, afterID int64, limit int) ([]*entity.WorkflowInstance, error)
	updateStateFunc         func(ctx context.Context, instance *entity.WorkflowInstance) error
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, instance)
	}
	instance.ID = 1
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockInstanceRepo) GetActiveByResource(ctx context.Context, resourceType entity.ResourceType, resourceID string) (*entity.WorkflowInstance, error) {
	if m.getActiveByResourceFunc != nil {
		return m.getActiveByResourceFunc(ctx, resourceType, resourceID)
	}
	return nil, nil
}

func (m *mockInstanceRepo) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*entity.WorkflowInstance{}, nil
}

func (m *mockInstanceRepo) ListActive(ctx context.Context, afterID int64, limit int) ([]*entity.WorkflowInstance, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, afterID, limit)
	}
	return nil, nil
}

func (m *mockInstanceRepo) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error {
	if m.updateStateFunc != nil {
		return m.updateStateFunc(ctx, instance)
	}
	instance.Version++
	return nil
}

type mockApprovalRepo struct {
	createFunc             func(ctx context.Context, approval *entity.WorkflowApproval) error
	getByIDFunc            func(ctx context.Context, id int64) (*entity.WorkflowApproval, error)
	listByInstanceStepFunc func(ctx context.Context, instanceID int64, step int) ([]*entity.WorkflowApproval, error)
	listPendingFunc        func(ctx context.Context, filter port.PendingFilter) ([]*entity.WorkflowApproval, error)
	decideFunc             func(ctx context.Context, id int64, decision port.Decision) (*entity.WorkflowApproval, error)
	cancelPendingFunc      func(ctx context.Context, instanceID int64, at time.Time) (int64, error)
}

func (m *mockApprovalRepo) Create(ctx context.Context, approval *entity.WorkflowApproval) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, approval)
	}
	approval.ID = 100
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowApproval, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockApprovalRepo) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApproval, error) {
	return []*entity.WorkflowApproval{}, nil
}

func (m *mockApprovalRepo) ListByInstanceStep(ctx context.Context, instanceID int64, step int) ([]*entity.WorkflowApproval, error) {
	if m.listByInstanceStepFunc != nil {
		return m.listByInstanceStepFunc(ctx, instanceID, step)
	}
	return []*entity.WorkflowApproval{}, nil
}

func (m *mockApprovalRepo) ListPending(ctx context.Context, filter port.PendingFilter) ([]*entity.WorkflowApproval, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, filter)
	}
	return []*entity.WorkflowApproval{}, nil
}

func (m *mockApprovalRepo) Decide(ctx context.Context, id int64, decision port.Decision) (*entity.WorkflowApproval, error) {
	if m.decideFunc != nil {
		return m.decideFunc(ctx, id, decision)
	}
	return &entity.WorkflowApproval{ID: id, Status: decision.Status, ApproverID: decision.ApproverID, Comments: decision.Comments}, nil
}

func (m *mockApprovalRepo) CancelPending(ctx context.Context, instanceID int64, at time.Time) (int64, error) {
	if m.cancelPendingFunc != nil {
		return m.cancelPendingFunc(ctx, instanceID, at)
	}
	return 0, nil
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	records []*entity.WorkflowApprovalHistory
	err     error
}

func (m *mockHistoryRepo) Append(ctx context.Context, record *entity.WorkflowApprovalHistory) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryRepo) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApprovalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowApprovalHistory
	for _, r := range m.records {
		if r.InstanceID == instanceID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, ref entity.ResourceRef) (*entity.ResourceScope, error)
}

func (m *mockResolver) Resolve(ctx context.Context, ref entity.ResourceRef) (*entity.ResourceScope, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, ref)
	}
	return &entity.ResourceScope{SubmitterID: "student-1", UniversityID: "uni-1", CompanyID: "co-1"}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockPublisher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, n port.Notification) error
	sent       []port.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n port.Notification) error {
	m.sent = append(m.sent, n)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, n)
	}
	return nil
}

func (m *mockNotifier) Name() string { return "mock" }

type mockExporter struct {
	exportFunc func(w io.Writer, instance *entity.WorkflowInstance, records []*entity.WorkflowApprovalHistory) error
}

func (m *mockExporter) Export(w io.Writer, instance *entity.WorkflowInstance, records []*entity.WorkflowApprovalHistory) error {
	if m.exportFunc != nil {
		return m.exportFunc(w, instance, records)
	}
	_, err := w.Write([]byte("export"))
	return err
}

func (m *mockExporter) ContentType() string   { return "text/plain" }
func (m *mockExporter) FileExtension() string { return ".txt" }

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var (
	adminActor    = entity.Actor{UserID: "admin-1", Role: entity.RoleAdmin}
	directorActor = entity.Actor{UserID: "director-1", Role: entity.RoleDirector, UniversityID: "uni-1"}
	studentActor  = entity.Actor{UserID: "student-1", Role: entity.RoleStudent, UniversityID: "uni-1"}
	companyActor  = entity.Actor{UserID: "company-1", Role: entity.RoleCompany, CompanyID: "co-1"}
)

func twoStepDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		ID:           7,
		ResourceType: entity.ResourceTypeInternship,
		Name:         "internship-review",
		Status:       entity.DefinitionStatusActive,
		Steps: []entity.WorkflowStep{
			{ID: 1, WorkflowID: 7, Sequence: 1, RequiredRole: entity.RoleDirector, Name: "Director review"},
			{ID: 2, WorkflowID: 7, Sequence: 2, RequiredRole: entity.RoleAdmin, Name: "Admin review"},
		},
	}
}
