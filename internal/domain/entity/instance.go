package entity

import (
	"time"

	"github.com/garyjia/internflow/internal/domain/workflow"
)

// WorkflowInstance tracks one resource through a workflow definition
type WorkflowInstance struct {
	ID                  int64          `json:"id"`
	WorkflowID          int64          `json:"workflow_id"`
	ResourceType        ResourceType   `json:"resource_type"`
	ResourceID          string         `json:"resource_id"`
	CurrentStepSequence int            `json:"current_step_sequence"`
	Status              workflow.State `json:"status"`
	CreatedBy           string         `json:"created_by"`
	SubmitterID         string         `json:"submitter_id,omitempty"`
	UniversityID        string         `json:"university_id,omitempty"`
	CompanyID           string         `json:"company_id,omitempty"`
	Version             int64          `json:"version"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

// Resource returns the typed reference of the tracked record
func (i *WorkflowInstance) Resource() ResourceRef {
	return ResourceRef{kind: i.ResourceType, id: i.ResourceID}
}
