package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"techroute-service/internal/domain"
	"techroute-service/internal/platform/obs"
)

// ErrTooManyStops marks a route request beyond the Directions waypoint limit.
var ErrTooManyStops = errors.New("route has too many stops")

// maxRouteStops caps origin + destination + waypoints per Directions request.
const maxRouteStops = 25

// RouteLeg is one drive between consecutive stops of an optimized route.
type RouteLeg struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	TravelMin  int     `json:"travel_min"`
	DistanceKm float64 `json:"distance_km"`
}

// Route is the result of a waypoint-optimized Directions request. Order is a
// permutation of the input stop indices in optimized visiting order.
type Route struct {
	Order           []int      `json:"order"`
	Legs            []RouteLeg `json:"legs"`
	TotalTravelMin  int        `json:"total_travel_min"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	Polyline        string     `json:"polyline"`
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		WaypointOrder []int `json:"waypoint_order"`
		Legs          []struct {
			StartAddress string `json:"start_address"`
			EndAddress   string `json:"end_address"`
			Duration     struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
	ErrorMessage string `json:"error_message"`
}

// OptimizeRoute asks Directions to reorder stops for the shortest drive from
// origin. With roundTrip the route returns to the origin; otherwise the last
// stop stays fixed as the final destination.
func (c *Client) OptimizeRoute(
	ctx context.Context,
	origin string,
	stops []string,
	roundTrip bool,
) (_ Route, err error) {
	defer obs.Time(ctx, "google.OptimizeRoute")(&err)
	defer func() { count("directions", err) }()

	normOrigin := c.normalize(domain.NormalizeCAPostal(origin))
	if normOrigin == "" {
		return Route{}, fmt.Errorf("optimize route: origin must be non-empty")
	}
	if len(stops) == 0 {
		return Route{}, fmt.Errorf("optimize route: at least one stop is required")
	}

	normStops := make([]string, 0, len(stops))
	for _, s := range stops {
		ns := c.normalize(domain.NormalizeCAPostal(s))
		if ns == "" {
			return Route{}, fmt.Errorf("optimize route: stop must be non-empty")
		}
		normStops = append(normStops, ns)
	}

	var destination string
	var waypoints []string
	if roundTrip {
		destination = normOrigin
		waypoints = normStops
	} else {
		destination = normStops[len(normStops)-1]
		waypoints = normStops[:len(normStops)-1]
	}

	if 2+len(waypoints) > maxRouteStops {
		return Route{}, fmt.Errorf(
			"optimize route with %d stops: %w", 2+len(waypoints), ErrTooManyStops,
		)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		params := url.Values{}
		params.Set("origin", normOrigin)
		params.Set("destination", destination)
		if len(waypoints) > 0 {
			params.Set("waypoints", "optimize:true|"+strings.Join(waypoints, "|"))
		}
		params.Set("mode", "driving")
		params.Set("departure_time", "now")
		params.Set("traffic_model", c.trafficModel)
		return c.newRequest(ctx, "/maps/api/directions/json", params)
	})
	if err != nil {
		return Route{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Route{}, fmt.Errorf("decode directions response: %w", err)
	}

	if decoded.Status != "OK" {
		return Route{}, fmt.Errorf(
			"directions: %w",
			&apiStatusError{Status: decoded.Status, Message: decoded.ErrorMessage},
		)
	}
	if len(decoded.Routes) == 0 {
		return Route{}, fmt.Errorf("directions returned no routes")
	}

	best := decoded.Routes[0]

	order := make([]int, 0, len(normStops))
	order = append(order, best.WaypointOrder...)
	if !roundTrip {
		// The fixed destination is always visited last.
		order = append(order, len(normStops)-1)
	}
	if len(order) != len(normStops) {
		return Route{}, fmt.Errorf(
			"directions waypoint order has %d entries for %d stops",
			len(order), len(normStops),
		)
	}

	route := Route{
		Order:    order,
		Legs:     make([]RouteLeg, 0, len(best.Legs)),
		Polyline: best.OverviewPolyline.Points,
	}

	totalSeconds := 0
	totalMeters := 0
	for _, leg := range best.Legs {
		seconds := leg.Duration.Value
		if leg.DurationInTraffic.Value > 0 {
			seconds = leg.DurationInTraffic.Value
		}
		totalSeconds += seconds
		totalMeters += leg.Distance.Value

		route.Legs = append(route.Legs, RouteLeg{
			From:       leg.StartAddress,
			To:         leg.EndAddress,
			TravelMin:  int(math.Round(float64(seconds) / 60.0)),
			DistanceKm: math.Round(float64(leg.Distance.Value)/100.0) / 10.0,
		})
	}

	route.TotalTravelMin = int(math.Round(float64(totalSeconds) / 60.0))
	route.TotalDistanceKm = math.Round(float64(totalMeters)/100.0) / 10.0

	return route, nil
}
