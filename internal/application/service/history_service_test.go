package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryService_GetApprovalHistory(t *testing.T) {
	instances := &mockInstanceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
			if id == 42 {
				return &entity.WorkflowInstance{ID: 42, ResourceType: entity.ResourceTypeInternship, ResourceID: "R1"}, nil
			}
			return nil, nil
		},
	}
	history := &mockHistoryRepo{}
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, &entity.WorkflowApprovalHistory{InstanceID: 42, Action: entity.HistoryActionCreated}))
	require.NoError(t, history.Append(ctx, &entity.WorkflowApprovalHistory{InstanceID: 43, Action: entity.HistoryActionCreated}))
	require.NoError(t, history.Append(ctx, &entity.WorkflowApprovalHistory{InstanceID: 42, Action: entity.HistoryActionApproved}))

	svc := NewHistoryService(instances, history, &mockExporter{}, &mockLogger{})

	records, err := svc.GetApprovalHistory(ctx, studentActor, 42)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.HistoryActionCreated, records[0].Action)
	assert.Equal(t, entity.HistoryActionApproved, records[1].Action)

	_, err = svc.GetApprovalHistory(ctx, studentActor, 99)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = svc.GetApprovalHistory(ctx, entity.Actor{}, 42)
	assert.ErrorIs(t, err, workflow.ErrUnauthenticated)

	var buf bytes.Buffer
	name, err := svc.ExportHistory(ctx, adminActor, 42, &buf)
	require.NoError(t, err)
	assert.Equal(t, "workflow-42-internship-R1-history.txt", name)
	assert.Equal(t, "export", buf.String())
	assert.Equal(t, "text/plain", svc.ContentType())
}

func TestHistoryService_ExportFailures(t *testing.T) {
	instances := &mockInstanceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
			return &entity.WorkflowInstance{ID: id}, nil
		},
	}

	_, err := NewHistoryService(instances, &mockHistoryRepo{}, nil, &mockLogger{}).
		ExportHistory(context.Background(), adminActor, 1, io.Discard)
	assert.ErrorIs(t, err, workflow.ErrConfiguration)

	boom := errors.New("disk full")
	exporter := &mockExporter{
		exportFunc: func(w io.Writer, instance *entity.WorkflowInstance, records []*entity.WorkflowApprovalHistory) error {
			return boom
		},
	}
	_, err = NewHistoryService(instances, &mockHistoryRepo{}, exporter, &mockLogger{}).
		ExportHistory(context.Background(), adminActor, 1, io.Discard)
	assert.ErrorIs(t, err, boom)
}
