package notify

import (
	"context"
	"testing"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), port.Notification{
		EventType:  "instance.approved",
		InstanceID: 42,
		Recipient:  "student-1",
		Title:      "Workflow approved",
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "instance.approved", fields["event_type"])
	assert.Equal(t, int64(42), fields["instance_id"])
	assert.Equal(t, "student-1", fields["recipient"])
	assert.Equal(t, "log", n.Name())
}
