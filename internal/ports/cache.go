package ports

import (
	"context"

	"techroute-service/internal/domain"
)

// TravelCache is a persistent key-value store for travel-minute lookups.
// Keys are expected to be normalized by the caller. Entries older than the
// store's retention window are treated as absent.
type TravelCache interface {
	// Get returns the cached minute value for key, with ok=false on a miss
	// or an expired entry.
	Get(ctx context.Context, key string) (minutes int, ok bool, err error)
	// Put stores a fresh entry for key, superseding any previous one.
	Put(ctx context.Context, key string, minutes int) error
}

// GeocodeCache is a persistent address -> coordinates store. Geocode results
// never expire.
type GeocodeCache interface {
	// Fetch cached coordinates for the given addresses.
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	// Store address -> coordinate mappings.
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
