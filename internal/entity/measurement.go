package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
)

// Measurement represents one drawn shape on a page. GeometryData is the
// source of truth; Quantity is a cache derived from it and the page's
// calibration at the time of the last calculation.
type Measurement struct {
	ID            uuid.UUID              `json:"id"`
	ConditionID   uuid.UUID              `json:"condition_id"`
	PageID        uuid.UUID              `json:"page_id"`
	GeometryType  constants.GeometryType `json:"geometry_type"`
	GeometryData  json.RawMessage        `json:"geometry_data"`
	Quantity      float64                `json:"quantity"`
	Unit          string                 `json:"unit"`
	IsAIGenerated bool                   `json:"is_ai_generated"`
	AIConfidence  *float64               `json:"ai_confidence,omitempty"`
	IsModified    bool                   `json:"is_modified"`
	Notes         *string                `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}
