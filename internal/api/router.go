package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"techroute-service/internal/adapters/googlemaps"
	"techroute-service/internal/api/handlers"
	"techroute-service/internal/domain"
	"techroute-service/internal/platform/metrics"
	"techroute-service/internal/ports"
	"techroute-service/internal/scheduler"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(
	planner *scheduler.Assigner,
	defaultTechs []domain.Technician,
	maps *googlemaps.Client,
	fleet ports.FleetProvider,
) http.Handler {
	mux := http.NewServeMux()

	planHandler := &handlers.PlanHandler{
		Planner:      planner,
		DefaultTechs: defaultTechs,
	}
	routeHandler := &handlers.RouteHandler{Maps: maps}
	fleetHandler := &handlers.FleetHandler{Fleet: fleet}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/plans", planHandler.Plan)
	mux.HandleFunc("/routes/optimize", routeHandler.Optimize)
	mux.HandleFunc("/fleet/positions", fleetHandler.Positions)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return loggingMiddleware(mux)
}
