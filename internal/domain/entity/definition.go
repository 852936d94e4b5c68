package entity

import "time"

// WorkflowDefinition is a workflow template for one resource type
type WorkflowDefinition struct {
	ID           int64          `json:"id"`
	ResourceType ResourceType   `json:"resource_type"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	CreatedBy    string         `json:"created_by"`
	Steps        []WorkflowStep `json:"steps,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsActive reports whether new instances may be created from the definition
func (d *WorkflowDefinition) IsActive() bool {
	return d.Status == DefinitionStatusActive
}

// StepAt returns the step with the given sequence, or nil
func (d *WorkflowDefinition) StepAt(sequence int) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].Sequence == sequence {
			return &d.Steps[i]
		}
	}
	return nil
}

// WorkflowStep is one approval stage of a definition
type WorkflowStep struct {
	ID           int64     `json:"id"`
	WorkflowID   int64     `json:"workflow_id"`
	Sequence     int       `json:"sequence"`
	RequiredRole Role      `json:"required_role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}
