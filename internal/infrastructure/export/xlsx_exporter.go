package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	summarySheet  = "Summary"
	timelineSheet = "Timeline"
	timeLayout    = "2006-01-02 15:04:05"
)

var timelineHeader = []string{"#", "Time (UTC)", "Action", "Actor", "Approval", "Previous status", "New status", "Comments"}

// XLSXExporter renders an instance timeline as an Excel workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSX exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes a workbook with a summary sheet and one timeline row per history record
func (e *XLSXExporter) Export(w io.Writer, instance *entity.WorkflowInstance, records []*entity.WorkflowApprovalHistory) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(timelineSheet); err != nil {
		return fmt.Errorf("failed to create timeline sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Instance", instance.ID},
		{"Workflow", instance.WorkflowID},
		{"Resource", instance.Resource().String()},
		{"Status", instance.Status.String()},
		{"Current step", instance.CurrentStepSequence},
		{"Submitter", instance.SubmitterID},
		{"Created by", instance.CreatedBy},
		{"Created at", formatTime(instance.CreatedAt)},
		{"Completed at", formatTimePtr(instance.CompletedAt)},
	}
	for i, row := range summary {
		if err := e.setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(timelineHeader))
	for i, h := range timelineHeader {
		header[i] = h
	}
	if err := e.setRow(f, timelineSheet, 1, header); err != nil {
		return err
	}

	for i, rec := range records {
		approval := ""
		if rec.ApprovalID != nil {
			approval = strconv.FormatInt(*rec.ApprovalID, 10)
		}
		row := []interface{}{
			i + 1,
			formatTime(rec.CreatedAt),
			string(rec.Action),
			rec.ActorID,
			approval,
			rec.PreviousStatus,
			rec.NewStatus,
			rec.Comments,
		}
		if err := e.setRow(f, timelineSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(timelineSheet, "B", "B", 20); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(timelineSheet, "H", "H", 60); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("History workbook written",
		zap.Int64("instance_id", instance.ID),
		zap.Int("rows", len(records)))
	return nil
}

func (e *XLSXExporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
