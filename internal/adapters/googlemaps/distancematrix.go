package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"techroute-service/internal/domain"
	"techroute-service/internal/platform/obs"
)

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
	ErrorMessage string `json:"error_message"`
}

// TravelMinutes returns the driving time in minutes between two addresses,
// preferring the traffic-aware duration when present.
func (c *Client) TravelMinutes(ctx context.Context, origin, destination string) (_ int, err error) {
	defer obs.Time(ctx, "google.TravelMinutes")(&err)
	defer func() { count("distance_matrix", err) }()

	normOrigin := c.normalize(domain.NormalizeCAPostal(origin))
	normDestination := c.normalize(domain.NormalizeCAPostal(destination))
	if normOrigin == "" || normDestination == "" {
		return 0, fmt.Errorf("travel minutes: origin and destination must be non-empty")
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		params := url.Values{}
		params.Set("origins", normOrigin)
		params.Set("destinations", normDestination)
		params.Set("mode", "driving")
		params.Set("departure_time", "now")
		params.Set("traffic_model", c.trafficModel)
		return c.newRequest(ctx, "/maps/api/distancematrix/json", params)
	})
	if err != nil {
		return 0, fmt.Errorf("distance matrix %q -> %q: %w", normOrigin, normDestination, err)
	}
	defer resp.Body.Close()

	var decoded matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode distance matrix response: %w", err)
	}

	if decoded.Status != "OK" {
		return 0, fmt.Errorf(
			"distance matrix %q -> %q: %w", normOrigin, normDestination,
			&apiStatusError{Status: decoded.Status, Message: decoded.ErrorMessage},
		)
	}
	if len(decoded.Rows) != 1 || len(decoded.Rows[0].Elements) != 1 {
		return 0, fmt.Errorf(
			"distance matrix returned %d rows for a single pair",
			len(decoded.Rows),
		)
	}

	el := decoded.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf(
			"distance matrix %q -> %q: %w", normOrigin, normDestination,
			&apiStatusError{Status: el.Status},
		)
	}

	seconds := el.Duration.Value
	if el.DurationInTraffic.Value > 0 {
		seconds = el.DurationInTraffic.Value
	}

	return int(math.Round(float64(seconds) / 60.0)), nil
}
