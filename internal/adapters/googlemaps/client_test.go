package googlemaps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", "best_guess")
	require.NoError(t, err)
	c.baseURL = srv.URL
	return c
}

func TestGeocodeResolvesPostalCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "J4G 1A1, Canada", r.URL.Query().Get("address"))
		assert.Equal(t, "country:CA", r.URL.Query().Get("components"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Longueuil, QC J4G 1A1, Canada",
				"geometry": {"location": {"lat": 45.53, "lng": -73.49}}
			}]
		}`))
	})

	coords, formatted, err := c.Geocode(context.Background(), "J4G1A1")
	require.NoError(t, err)
	assert.Equal(t, 45.53, coords.Lat)
	assert.Equal(t, -73.49, coords.Lon)
	assert.Equal(t, "Longueuil, QC J4G 1A1, Canada", formatted)
}

func TestGeocodeZeroResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, _, err := c.Geocode(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZERO_RESULTS")
}

func TestTravelMinutesPrefersTraffic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/distancematrix/json", r.URL.Path)
		assert.Equal(t, "now", r.URL.Query().Get("departure_time"))
		assert.Equal(t, "best_guess", r.URL.Query().Get("traffic_model"))

		w.Write([]byte(`{
			"status": "OK",
			"rows": [{"elements": [{
				"status": "OK",
				"duration": {"value": 1200},
				"duration_in_traffic": {"value": 1500}
			}]}]
		}`))
	})

	minutes, err := c.TravelMinutes(context.Background(), "123 Main St", "456 Oak Ave")
	require.NoError(t, err)
	assert.Equal(t, 25, minutes)
}

func TestTravelMinutesElementNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "OK",
			"rows": [{"elements": [{"status": "NOT_FOUND"}]}]
		}`))
	})

	_, err := c.TravelMinutes(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{
			"status": "OK",
			"rows": [{"elements": [{"status": "OK", "duration": {"value": 600}}]}]
		}`))
	})

	minutes, err := c.TravelMinutes(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 10, minutes)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.TravelMinutes(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOptimizeRouteRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "depot", r.URL.Query().Get("origin"))
		assert.Equal(t, "depot", r.URL.Query().Get("destination"))
		assert.Equal(t, "optimize:true|stop a|stop b|stop c", r.URL.Query().Get("waypoints"))

		w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"waypoint_order": [2, 0, 1],
				"overview_polyline": {"points": "abc123"},
				"legs": [
					{"start_address": "depot", "end_address": "stop c",
					 "duration": {"value": 600}, "distance": {"value": 5000}},
					{"start_address": "stop c", "end_address": "stop a",
					 "duration": {"value": 300}, "duration_in_traffic": {"value": 360},
					 "distance": {"value": 2000}},
					{"start_address": "stop a", "end_address": "stop b",
					 "duration": {"value": 300}, "distance": {"value": 3000}},
					{"start_address": "stop b", "end_address": "depot",
					 "duration": {"value": 600}, "distance": {"value": 6000}}
				]
			}]
		}`))
	})

	route, err := c.OptimizeRoute(context.Background(), "depot", []string{"stop a", "stop b", "stop c"}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, route.Order)
	assert.Len(t, route.Legs, 4)
	assert.Equal(t, 31, route.TotalTravelMin)
	assert.Equal(t, 16.0, route.TotalDistanceKm)
	assert.Equal(t, "abc123", route.Polyline)
	assert.Equal(t, 6, route.Legs[1].TravelMin)
}

func TestOptimizeRouteFixedDestination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stop c", r.URL.Query().Get("destination"))
		assert.Equal(t, "optimize:true|stop a|stop b", r.URL.Query().Get("waypoints"))

		w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"waypoint_order": [1, 0],
				"overview_polyline": {"points": ""},
				"legs": [
					{"duration": {"value": 60}, "distance": {"value": 1000}},
					{"duration": {"value": 60}, "distance": {"value": 1000}},
					{"duration": {"value": 60}, "distance": {"value": 1000}}
				]
			}]
		}`))
	})

	route, err := c.OptimizeRoute(context.Background(), "depot", []string{"stop a", "stop b", "stop c"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, route.Order)
}

func TestOptimizeRouteTooManyStops(t *testing.T) {
	c, err := NewClient("test-key", "best_guess")
	require.NoError(t, err)

	stops := make([]string, 30)
	for i := range stops {
		stops[i] = "stop"
	}

	_, err = c.OptimizeRoute(context.Background(), "depot", stops, true)
	require.ErrorIs(t, err, ErrTooManyStops)
}
