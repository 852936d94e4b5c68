package port

import (
	"context"
	"io"

	"github.com/garyjia/internflow/internal/domain/entity"
)

// ResourceResolver looks up the records that workflow instances track.
// The workflow engine depends on it but the owning domains implement it.
type ResourceResolver interface {
	// Resolve returns the scope of the referenced record, or nil if it does not exist
	Resolve(ctx context.Context, ref entity.ResourceRef) (*entity.ResourceScope, error)
}

// Notification is a message produced from a workflow event
type Notification struct {
	EventType  string
	InstanceID int64
	// Recipient is a user id or role the message is addressed to; empty means the default channel
	Recipient string
	Title     string
	Body      string
}

// Notifier delivers notifications; callers treat failures as non-fatal
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Name() string
}

// HistoryExporter renders an instance timeline into a downloadable document
type HistoryExporter interface {
	Export(w io.Writer, instance *entity.WorkflowInstance, records []*entity.WorkflowApprovalHistory) error
	ContentType() string
	FileExtension() string
}
