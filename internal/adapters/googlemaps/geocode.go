package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"techroute-service/internal/domain"
	"techroute-service/internal/platform/obs"
)

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves free text (an address or a Canadian postal code) to
// coordinates. Results are biased toward Canada.
func (c *Client) Geocode(ctx context.Context, text string) (_ domain.Coordinates, _ string, err error) {
	defer obs.Time(ctx, "google.Geocode")(&err)
	defer func() { count("geocode", err) }()

	norm := c.normalize(domain.NormalizeCAPostal(text))
	if norm == "" {
		return domain.Coordinates{}, "", fmt.Errorf("geocode: text must be non-empty")
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		params := url.Values{}
		params.Set("address", norm)
		params.Set("components", "country:CA")
		params.Set("region", "ca")
		return c.newRequest(ctx, "/maps/api/geocode/json", params)
	})
	if err != nil {
		return domain.Coordinates{}, "", fmt.Errorf("geocode %q: %w", norm, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, "", fmt.Errorf("decode geocode response: %w", err)
	}

	if decoded.Status != "OK" {
		return domain.Coordinates{}, "", fmt.Errorf(
			"geocode %q: %w", norm,
			&apiStatusError{Status: decoded.Status, Message: decoded.ErrorMessage},
		)
	}
	if len(decoded.Results) == 0 {
		return domain.Coordinates{}, "", fmt.Errorf("no geocode results for %q", norm)
	}

	loc := decoded.Results[0].Geometry.Location
	return domain.Coordinates{Lon: loc.Lng, Lat: loc.Lat}, decoded.Results[0].FormattedAddress, nil
}
