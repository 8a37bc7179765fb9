package ports

import (
	"context"

	"techroute-service/internal/domain"
)

// Contract for retrieving a driving-time estimate between two locations.
// Implementations return an error when no estimate can be produced; callers
// decide whether that means "skip the pairing" or "fail the request".
type TravelTimeProvider interface {
	// Return the driving time in whole minutes between two free-text locations.
	TravelMinutes(ctx context.Context, origin, destination string) (int, error)
}

// Contract for resolving free-text locations to coordinates.
type Geocoder interface {
	// Return the coordinates and formatted address for a location string.
	Geocode(ctx context.Context, text string) (domain.Coordinates, string, error)
}
