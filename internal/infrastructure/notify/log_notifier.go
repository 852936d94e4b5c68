package notify

import (
	"context"

	"github.com/garyjia/internflow/internal/application/port"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the application log. It is the default
// sink when no messaging channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Notify(ctx context.Context, msg port.Notification) error {
	n.logger.Info("Notification",
		zap.String("event_type", msg.EventType),
		zap.Int64("instance_id", msg.InstanceID),
		zap.String("recipient", msg.Recipient),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}
