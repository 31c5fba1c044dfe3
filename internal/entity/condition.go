package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/estimatorhq/takeoff-engine/constants"
)

// Condition represents a takeoff category aggregating many measurements.
// TotalQuantity and MeasurementCount are denormalized projections refreshed
// inside the same transaction as every measurement mutation.
type Condition struct {
	ID               uuid.UUID                 `json:"id"`
	ProjectID        uuid.UUID                 `json:"project_id"`
	Name             string                    `json:"name"`
	MeasurementType  constants.MeasurementType `json:"measurement_type"`
	Unit             string                    `json:"unit"`
	DepthInches      *float64                  `json:"depth_inches,omitempty"`
	TotalQuantity    float64                   `json:"total_quantity"`
	MeasurementCount int                       `json:"measurement_count"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}
