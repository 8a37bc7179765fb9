package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/adapters/googlemaps"
	"techroute-service/internal/api/dto"
)

type RouteHandler struct {
	Maps *googlemaps.Client
}

// Optimize reorders the posted stops into the shortest driving route.
func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.RouteRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if strings.TrimSpace(req.Origin) == "" {
		writeError(w, r, http.StatusBadRequest, "origin is required")
		return
	}
	if len(req.Stops) == 0 {
		writeError(w, r, http.StatusBadRequest, "stops is required")
		return
	}

	route, err := h.Maps.OptimizeRoute(r.Context(), req.Origin, req.Stops, req.RoundTrip)
	if err != nil {
		if errors.Is(err, googlemaps.ErrTooManyStops) {
			writeError(w, r, http.StatusBadRequest, "too many stops: at most 25 including origin and destination")
			return
		}
		log.Error().Err(err).Msg("route optimization failed")
		writeError(w, r, http.StatusBadGateway, "route optimization failed")
		return
	}

	writeJSON(w, r, http.StatusOK, route)
}
