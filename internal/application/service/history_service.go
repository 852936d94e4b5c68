package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

// HistoryService reads the append-only audit trail of an instance
type HistoryService interface {
	// GetApprovalHistory returns the timeline oldest first
	GetApprovalHistory(ctx context.Context, actor entity.Actor, instanceID int64) ([]*entity.WorkflowApprovalHistory, error)
	// ExportHistory writes the timeline as a document and returns a suggested file name
	ExportHistory(ctx context.Context, actor entity.Actor, instanceID int64, w io.Writer) (string, error)
	ContentType() string
}

type historyServiceImpl struct {
	instanceRepo port.InstanceRepository
	historyRepo  port.HistoryRepository
	exporter     port.HistoryExporter
	logger       Logger
}

// NewHistoryService creates a new HistoryService. exporter may be nil, which disables ExportHistory.
func NewHistoryService(
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	exporter port.HistoryExporter,
	logger Logger,
) HistoryService {
	return &historyServiceImpl{
		instanceRepo: instanceRepo,
		historyRepo:  historyRepo,
		exporter:     exporter,
		logger:       logger,
	}
}

func (s *historyServiceImpl) GetApprovalHistory(ctx context.Context, actor entity.Actor, instanceID int64) ([]*entity.WorkflowApprovalHistory, error) {
	_, records, err := s.timeline(ctx, actor, instanceID)
	return records, err
}

func (s *historyServiceImpl) ExportHistory(ctx context.Context, actor entity.Actor, instanceID int64, w io.Writer) (string, error) {
	if s.exporter == nil {
		return "", fmt.Errorf("history export is not configured: %w", workflow.ErrConfiguration)
	}

	instance, records, err := s.timeline(ctx, actor, instanceID)
	if err != nil {
		return "", err
	}

	if err := s.exporter.Export(w, instance, records); err != nil {
		s.logger.Error("Failed to export history", "error", err, "instance_id", instanceID)
		return "", fmt.Errorf("export history of instance %d: %w", instanceID, err)
	}

	s.logger.Info("History exported", "instance_id", instanceID, "rows", len(records), "actor_id", actor.UserID)
	return fmt.Sprintf("workflow-%d-%s-%s-history%s",
		instance.ID, instance.ResourceType, instance.ResourceID, s.exporter.FileExtension()), nil
}

func (s *historyServiceImpl) ContentType() string {
	if s.exporter == nil {
		return ""
	}
	return s.exporter.ContentType()
}

func (s *historyServiceImpl) timeline(ctx context.Context, actor entity.Actor, instanceID int64) (*entity.WorkflowInstance, []*entity.WorkflowApprovalHistory, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}

	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	if instance == nil {
		return nil, nil, fmt.Errorf("instance %d: %w", instanceID, workflow.ErrNotFound)
	}

	records, err := s.historyRepo.ListByInstance(ctx, instanceID)
	if err != nil {
		s.logger.Error("Failed to list history", "error", err, "instance_id", instanceID)
		return nil, nil, err
	}
	return instance, records, nil
}
