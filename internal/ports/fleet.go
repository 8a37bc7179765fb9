package ports

import (
	"context"
	"time"

	"techroute-service/internal/domain"
)

// Device is a tracked fleet vehicle.
type Device struct {
	ID   string
	Name string
}

// VehiclePosition is a last-known fleet vehicle position with the resolved
// driver name when one is available.
type VehiclePosition struct {
	DeviceID   string
	DeviceName string
	Driver     string
	Coords     domain.Coordinates
	When       time.Time
}

// Contract for reading live fleet telemetry.
type FleetProvider interface {
	// Return last-known positions for all active devices.
	ActivePositions(ctx context.Context) ([]VehiclePosition, error)
}
