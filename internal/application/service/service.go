package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/event"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher receives domain events after the producing transaction commits
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxCommentLen   = 2000
)

func requireActor(actor entity.Actor) error {
	if strings.TrimSpace(actor.UserID) == "" || actor.Role == "" {
		return workflow.ErrUnauthenticated
	}
	return nil
}

func requireAdmin(actor entity.Actor, action string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%s requires an administrator: %w", action, workflow.ErrForbidden)
	}
	return nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateComments(comments string, required bool) error {
	if required && strings.TrimSpace(comments) == "" {
		return workflow.NewValidationError("comments", "is required")
	}
	if len(comments) > maxCommentLen {
		return workflow.NewValidationError("comments", fmt.Sprintf("must be at most %d characters", maxCommentLen))
	}
	return nil
}

// publishAll sends events in order; a nil publisher drops them
func publishAll(ctx context.Context, publisher EventPublisher, events []*event.Event) {
	if publisher == nil {
		return
	}
	for _, evt := range events {
		publisher.DispatchAsync(ctx, evt)
	}
}

// submitterOf is the user treated as the resource's original submitter
func submitterOf(instance *entity.WorkflowInstance) string {
	if instance.SubmitterID != "" {
		return instance.SubmitterID
	}
	return instance.CreatedBy
}
