package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by producers and consumers
const (
	KeyWorkflowID   = "workflow_id"
	KeyResourceType = "resource_type"
	KeyResourceID   = "resource_id"
	KeyApprovalID   = "approval_id"
	KeyStep         = "step_sequence"
	KeyRequiredRole = "required_role"
	KeyActorID      = "actor_id"
	KeyStatus       = "status"
	KeyComments     = "comments"
	KeySubmitterID  = "submitter_id"
)

// Event is a domain event emitted after a workflow transaction commits
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	InstanceID    int64                  `json:"instance_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event starting a new correlation chain
func NewEvent(eventType Type, instanceID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, instanceID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, instanceID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		InstanceID:    instanceID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set; the receiver is unchanged
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
