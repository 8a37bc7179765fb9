package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techroute-service/internal/domain"
)

func TestGeocodeCachePutGetMany(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := NewSqliteGeocodeCache(db)

	in := map[string]domain.Coordinates{
		"J4G, Canada": {Lon: -73.42, Lat: 45.61},
		"H7K, Canada": {Lon: -73.75, Lat: 45.60},
	}
	require.NoError(t, c.PutMany(ctx, in))

	out, err := c.GetMany(ctx, []string{"J4G, Canada", "H7K, Canada", "J7B, Canada"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, in["J4G, Canada"], out["J4G, Canada"])
}

func TestGeocodeCacheDedupesAndSkipsBlank(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := NewSqliteGeocodeCache(db)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"J4G, Canada": {Lon: -73.42, Lat: 45.61},
	}))

	out, err := c.GetMany(ctx, []string{"J4G, Canada", "J4G, Canada", "  ", ""})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestGeocodeCacheUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := NewSqliteGeocodeCache(db)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"J4G, Canada": {Lon: -73.0, Lat: 45.0},
	}))
	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"J4G, Canada": {Lon: -73.42, Lat: 45.61},
	}))

	out, err := c.GetMany(ctx, []string{"J4G, Canada"})
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -73.42, Lat: 45.61}, out["J4G, Canada"])
}
