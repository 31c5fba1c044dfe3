package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/estimatorhq/takeoff-engine/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for
// takeoff exports.
type Service struct {
	conditions   repository.ConditionRepository
	measurements repository.MeasurementRepository
	logger       *slog.Logger
}

func NewService(conditions repository.ConditionRepository, measurements repository.MeasurementRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conditions: conditions, measurements: measurements, logger: logger}
}

const (
	conditionsSheet   = "Conditions"
	measurementsSheet = "Measurements"
)

// ExportTakeoffXLSX returns an XLSX workbook (as bytes) with one summary row
// per condition and one detail row per measurement for the given project.
func (s *Service) ExportTakeoffXLSX(ctx context.Context, projectID uuid.UUID) ([]byte, error) {
	start := time.Now()

	conditions, err := s.conditions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}

	f := excelize.NewFile()
	for _, sheet := range []string{conditionsSheet, measurementsSheet} {
		if index, _ := f.GetSheetIndex(sheet); index == -1 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(conditionsSheet)
	f.SetActiveSheet(activeIndex)

	conditionHeaders := []string{
		"Condition",
		"Measurement Type",
		"Unit",
		"Total Quantity",
		"Measurement Count",
		"Depth (in)",
	}
	for i, h := range conditionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(conditionsSheet, cell, h)
	}

	measurementHeaders := []string{
		"Condition",
		"Page ID",
		"Geometry",
		"Quantity",
		"Unit",
		"AI Generated",
		"Modified",
		"Notes",
	}
	for i, h := range measurementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(measurementsSheet, cell, h)
	}

	conditionRow := 2
	measurementRow := 2
	for _, c := range conditions {
		values := []any{
			c.Name,
			string(c.MeasurementType),
			c.Unit,
			c.TotalQuantity,
			c.MeasurementCount,
		}
		if c.DepthInches != nil {
			values = append(values, *c.DepthInches)
		} else {
			values = append(values, "")
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, conditionRow)
			_ = f.SetCellValue(conditionsSheet, cell, v)
		}
		conditionRow++

		measurements, err := s.measurements.ListByCondition(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("query measurements for condition %s: %w", c.ID, err)
		}
		for _, m := range measurements {
			notes := ""
			if m.Notes != nil {
				notes = *m.Notes
			}
			detail := []any{
				c.Name,
				m.PageID.String(),
				string(m.GeometryType),
				m.Quantity,
				m.Unit,
				m.IsAIGenerated,
				m.IsModified,
				notes,
			}
			for i, v := range detail {
				cell, _ := excelize.CoordinatesToCellName(i+1, measurementRow)
				_ = f.SetCellValue(measurementsSheet, cell, v)
			}
			measurementRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("takeoff export complete",
		"project_id", projectID,
		"conditions", conditionRow-2,
		"measurements", measurementRow-2,
		"duration", time.Since(start))
	return buf.Bytes(), nil
}
