package entity

import "time"

// WorkflowApprovalHistory is one append-only row of an instance audit trail
type WorkflowApprovalHistory struct {
	ID             int64         `json:"id"`
	InstanceID     int64         `json:"instance_id"`
	ApprovalID     *int64        `json:"approval_id,omitempty"`
	Action         HistoryAction `json:"action"`
	ActorID        string        `json:"actor_id"`
	PreviousStatus string        `json:"previous_status"`
	NewStatus      string        `json:"new_status"`
	Comments       string        `json:"comments,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
