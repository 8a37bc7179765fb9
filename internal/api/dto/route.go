package dto

type RouteRequest struct {
	Origin    string   `json:"origin"`
	Stops     []string `json:"stops"`
	RoundTrip bool     `json:"round_trip"`
}
