package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techroute-service/internal/domain"
	"techroute-service/internal/ports"
)

type stubFleet struct {
	positions []ports.VehiclePosition
	err       error
}

func (f stubFleet) ActivePositions(context.Context) ([]ports.VehiclePosition, error) {
	return f.positions, f.err
}

func TestFleetPositions(t *testing.T) {
	h := &FleetHandler{Fleet: stubFleet{positions: []ports.VehiclePosition{
		{
			DeviceID:   "b1",
			DeviceName: "Truck 12",
			Driver:     "Martin",
			Coords:     domain.Coordinates{Lon: -73.5, Lat: 45.5},
			When:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		},
	}}}

	req := httptest.NewRequest(http.MethodGet, "/fleet/positions", nil)
	rec := httptest.NewRecorder()
	h.Positions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Truck 12"`)
	assert.Contains(t, rec.Body.String(), `"driver":"Martin"`)
}

func TestFleetNotConfigured(t *testing.T) {
	h := &FleetHandler{}

	req := httptest.NewRequest(http.MethodGet, "/fleet/positions", nil)
	rec := httptest.NewRecorder()
	h.Positions(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
