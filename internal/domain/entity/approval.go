package entity

import "time"

// WorkflowApproval is the decision record for one step of an instance
type WorkflowApproval struct {
	ID           int64          `json:"id"`
	InstanceID   int64          `json:"instance_id"`
	StepSequence int            `json:"step_sequence"`
	RequiredRole Role           `json:"required_role"`
	Status       ApprovalStatus `json:"status"`
	ApproverID   string         `json:"approver_id,omitempty"`
	ResponseTime *time.Time     `json:"response_time,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsPending reports whether the approval still awaits a decision
func (a *WorkflowApproval) IsPending() bool {
	return a.Status == ApprovalStatusPending
}
