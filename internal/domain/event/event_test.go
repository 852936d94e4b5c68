package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes {
		if !typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = false, want true", typ)
		}
	}

	for _, typ := range []Type{"", "unknown.type", "instance.status_changed"} {
		if typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = true, want false", typ)
		}
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeApprovalApproved, 42, map[string]interface{}{
		KeyActorID: "d1",
		KeyStep:    1,
	})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Errorf("Event CorrelationID = %q, want a distinct id", event.CorrelationID)
	}
	if event.Type != TypeApprovalApproved {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeApprovalApproved)
	}
	if event.InstanceID != 42 {
		t.Errorf("Event InstanceID = %v, want 42", event.InstanceID)
	}
	if event.GetPayloadString(KeyActorID) != "d1" {
		t.Errorf("payload actor = %q, want d1", event.GetPayloadString(KeyActorID))
	}
	if event.GetPayloadInt(KeyStep) != 1 {
		t.Errorf("payload step = %d, want 1", event.GetPayloadInt(KeyStep))
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeInstanceApproved, 7, nil, "corr-1")

	if event.CorrelationID != "corr-1" {
		t.Errorf("Event CorrelationID = %v, want corr-1", event.CorrelationID)
	}
	if event.Payload == nil {
		t.Error("nil payload should be replaced with an empty map")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeInstanceCreated, 1, map[string]interface{}{KeyResourceID: "R1"})
	updated := original.WithPayload(KeyStatus, "pending")

	if _, ok := original.Payload[KeyStatus]; ok {
		t.Error("WithPayload() must not mutate the original event")
	}
	if updated.GetPayloadString(KeyStatus) != "pending" || updated.GetPayloadString(KeyResourceID) != "R1" {
		t.Errorf("updated payload = %v", updated.Payload)
	}
	if updated.ID != original.ID || updated.CorrelationID != original.CorrelationID {
		t.Error("WithPayload() should keep identity fields")
	}
}

func TestEvent_GetPayloadMissingKeys(t *testing.T) {
	event := NewEvent(TypeInstanceCreated, 1, map[string]interface{}{"n": 3.0, "s": 5})

	if event.GetPayloadString("s") != "" {
		t.Error("non-string value should yield empty string")
	}
	if event.GetPayloadInt("n") != 3 {
		t.Errorf("GetPayloadInt(float) = %d, want 3", event.GetPayloadInt("n"))
	}
	if event.GetPayloadInt("missing") != 0 {
		t.Error("missing key should yield 0")
	}
}
