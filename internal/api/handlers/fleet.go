package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/ports"
)

type FleetHandler struct {
	Fleet ports.FleetProvider
}

type fleetPositionResponse struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Driver     string    `json:"driver,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	When       time.Time `json:"when"`
}

// Positions returns last-known positions for every active fleet vehicle.
func (h *FleetHandler) Positions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.Fleet == nil {
		writeError(w, r, http.StatusServiceUnavailable, "fleet telemetry is not configured")
		return
	}

	positions, err := h.Fleet.ActivePositions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("fleet positions failed")
		writeError(w, r, http.StatusBadGateway, "fleet telemetry unavailable")
		return
	}

	out := make([]fleetPositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, fleetPositionResponse{
			DeviceID:   p.DeviceID,
			DeviceName: p.DeviceName,
			Driver:     p.Driver,
			Lat:        p.Coords.Lat,
			Lon:        p.Coords.Lon,
			When:       p.When,
		})
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"positions": out})
}
