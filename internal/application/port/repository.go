package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// ErrDuplicate is returned by repositories when a unique constraint rejects an insert
var ErrDuplicate = errors.New("duplicate record")

// DefinitionRepository defines persistence operations for WorkflowDefinition and its steps
type DefinitionRepository interface {
	// Create inserts the definition and all of its steps
	Create(ctx context.Context, def *entity.WorkflowDefinition) error
	// GetByID returns the definition with steps ordered by sequence, or nil
	GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	// GetByName returns the definition with the given name, or nil
	GetByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error)
	// List returns definitions, optionally filtered by resource type
	List(ctx context.Context, resourceType *entity.ResourceType) ([]*entity.WorkflowDefinition, error)
	// Update writes name, description and status
	Update(ctx context.Context, def *entity.WorkflowDefinition) error
}

// InstanceFilter narrows instance listings
type InstanceFilter struct {
	Status       *workflow.State
	ResourceType *entity.ResourceType
	// Scope restricts results to instances visible to a non-admin caller; nil means all
	Scope  *InstanceScope
	Limit  int
	Offset int
}

// InstanceScope lists the ownership keys that make an instance visible
type InstanceScope struct {
	UserID       string
	UniversityID string
	CompanyID    string
	Role         entity.Role
}

// InstanceRepository defines persistence operations for WorkflowInstance
type InstanceRepository interface {
	// Create inserts a new instance; returns ErrDuplicate if the resource already has an active one
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	// GetActiveByResource returns the pending or in_progress instance of a resource, or nil
	GetActiveByResource(ctx context.Context, resourceType entity.ResourceType, resourceID string) (*entity.WorkflowInstance, error)
	List(ctx context.Context, filter InstanceFilter) ([]*entity.WorkflowInstance, error)
	// ListActive pages through pending and in_progress instances with id greater than afterID
	ListActive(ctx context.Context, afterID int64, limit int) ([]*entity.WorkflowInstance, error)
	// UpdateState writes status, step and completion time if the stored version
	// still matches instance.Version. On success instance.Version is incremented;
	// on a version mismatch, or when reactivating would give the resource a
	// second active instance, workflow.ErrInvalidState is returned.
	UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error
}

// Decision is the outcome written to a pending approval
type Decision struct {
	Status     entity.ApprovalStatus
	ApproverID string
	Comments   string
	At         time.Time
}

// PendingFilter narrows the pending-approval queue
type PendingFilter struct {
	// Role restricts to approvals whose step requires this role; nil means any role
	Role *entity.Role
	// UniversityID and CompanyID, when set, keep only instances of that organisation
	UniversityID string
	CompanyID    string
	Limit        int
	Offset       int
}

// ApprovalRepository defines persistence operations for WorkflowApproval
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.WorkflowApproval) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowApproval, error)
	ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApproval, error)
	ListByInstanceStep(ctx context.Context, instanceID int64, stepSequence int) ([]*entity.WorkflowApproval, error)
	// ListPending returns pending approvals on the current step of active instances
	ListPending(ctx context.Context, filter PendingFilter) ([]*entity.WorkflowApproval, error)
	// Decide moves a pending approval to a decided status with a compare-and-swap
	// on status; returns workflow.ErrInvalidState if it was no longer pending
	Decide(ctx context.Context, id int64, decision Decision) (*entity.WorkflowApproval, error)
	// CancelPending withdraws every pending approval of an instance and returns how many changed
	CancelPending(ctx context.Context, instanceID int64, at time.Time) (int64, error)
}

// HistoryRepository is the append-only audit trail; it has no update or delete
type HistoryRepository interface {
	Append(ctx context.Context, record *entity.WorkflowApprovalHistory) error
	// ListByInstance returns rows ordered by creation time, oldest first
	ListByInstance(ctx context.Context, instanceID int64) ([]*entity.WorkflowApprovalHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
