package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
)

// Page represents a drawing page for data transfer between layers.
type Page struct {
	ID                   uuid.UUID       `json:"id"`
	ProjectID            uuid.UUID       `json:"project_id"`
	PageNumber           int             `json:"page_number"`
	ScaleText            *string         `json:"scale_text,omitempty"`
	ScaleValue           *float64        `json:"scale_value,omitempty"` // pixels per foot once calibrated
	ScaleUnit            *string         `json:"scale_unit,omitempty"`
	ScaleCalibrated      bool            `json:"scale_calibrated"`
	ScaleDetectionMethod *string         `json:"scale_detection_method,omitempty"`
	ScaleCalibrationData json.RawMessage `json:"scale_calibration_data,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Calibrated reports whether the page carries a usable pixels-per-foot value.
func (p *Page) Calibrated() bool {
	return p.ScaleCalibrated && p.ScaleValue != nil && *p.ScaleValue > 0
}

// PageCalibration is the writable calibration state of a page.
type PageCalibration struct {
	ScaleText       *string                    `json:"scale_text,omitempty"`
	ScaleValue      *float64                   `json:"scale_value,omitempty"`
	ScaleUnit       *string                    `json:"scale_unit,omitempty"`
	Calibrated      bool                       `json:"scale_calibrated"`
	Method          *constants.DetectionMethod `json:"scale_detection_method,omitempty"`
	CalibrationData json.RawMessage            `json:"scale_calibration_data,omitempty"`
}
