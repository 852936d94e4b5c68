package service

import (
	"context"
	"fmt"

	"github.com/garyjia/internflow/internal/application/dispatcher"
	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/event"
)

// Subscriber is the part of the event dispatcher the notification service needs
type Subscriber interface {
	SubscribeNamed(eventType event.Type, name, description string, handler dispatcher.Handler)
}

// NotificationService turns workflow events into notifications
type NotificationService interface {
	// Register subscribes the service to every event it notifies on
	Register(sub Subscriber)
	// Handle builds and delivers the notification for one event
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{notifier: notifier, logger: logger}
}

var notifiedEvents = []event.Type{
	event.TypeInstanceCreated,
	event.TypeInstanceAdvanced,
	event.TypeInstanceApproved,
	event.TypeInstanceRejected,
	event.TypeInstanceCancelled,
	event.TypeInstanceReset,
	event.TypeApprovalCommented,
}

func (s *notificationServiceImpl) Register(sub Subscriber) {
	for _, t := range notifiedEvents {
		sub.SubscribeNamed(t, "notify:"+s.notifier.Name(), "deliver "+string(t)+" notifications", s.Handle)
	}
}

// Handle never returns an error; delivery failures are logged
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	n, ok := BuildNotification(evt)
	if !ok {
		return nil
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Notification delivery failed",
			"error", err,
			"notifier", s.notifier.Name(),
			"event_type", evt.Type,
			"event_id", evt.ID,
			"instance_id", evt.InstanceID,
		)
		return nil
	}

	s.logger.Info("Notification delivered",
		"notifier", s.notifier.Name(),
		"event_type", evt.Type,
		"instance_id", evt.InstanceID,
		"recipient", n.Recipient,
	)
	return nil
}

// BuildNotification maps an event to the message sent for it.
// Events waiting on a step are addressed to the step's role, outcomes to the submitter.
func BuildNotification(evt *event.Event) (port.Notification, bool) {
	resource := fmt.Sprintf("%s %s", evt.GetPayloadString(event.KeyResourceType), evt.GetPayloadString(event.KeyResourceID))
	step := evt.GetPayloadInt(event.KeyStep)
	role := evt.GetPayloadString(event.KeyRequiredRole)
	submitter := evt.GetPayloadString(event.KeySubmitterID)
	comments := evt.GetPayloadString(event.KeyComments)

	n := port.Notification{EventType: string(evt.Type), InstanceID: evt.InstanceID}
	switch evt.Type {
	case event.TypeInstanceCreated, event.TypeInstanceReset:
		n.Recipient = "role:" + role
		n.Title = "Approval requested"
		n.Body = fmt.Sprintf("%s is waiting for %s review at step %d.", resource, role, step)
	case event.TypeInstanceAdvanced:
		n.Recipient = "role:" + role
		n.Title = "Approval requested"
		n.Body = fmt.Sprintf("%s passed the previous step and now waits for %s review at step %d.", resource, role, step)
	case event.TypeInstanceApproved:
		n.Recipient = submitter
		n.Title = "Workflow approved"
		n.Body = fmt.Sprintf("%s was approved.", resource)
	case event.TypeInstanceRejected:
		n.Recipient = submitter
		n.Title = "Workflow rejected"
		n.Body = fmt.Sprintf("%s was rejected at step %d.", resource, step)
	case event.TypeInstanceCancelled:
		n.Recipient = submitter
		n.Title = "Workflow cancelled"
		n.Body = fmt.Sprintf("Review of %s was cancelled.", resource)
	case event.TypeApprovalCommented:
		n.Recipient = submitter
		n.Title = "New comment"
		n.Body = fmt.Sprintf("%s commented on %s.", evt.GetPayloadString(event.KeyActorID), resource)
	default:
		return port.Notification{}, false
	}

	if comments != "" && evt.Type != event.TypeInstanceCreated {
		n.Body += "\n" + comments
	}
	return n, true
}
