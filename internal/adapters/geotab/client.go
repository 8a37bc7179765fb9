package geotab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/domain"
	"techroute-service/internal/platform/metrics"
	"techroute-service/internal/ports"
)

// ErrRateLimited marks a call rejected by the soft per-minute call guard.
var ErrRateLimited = errors.New("geotab call budget exhausted")

// Client is a MyGeotab JSON-RPC client. It authenticates lazily, re-uses the
// session, and re-authenticates once when the session expires mid-run.
//
// The client is safe for concurrent use.
type Client struct {
	session  *http.Client
	server   string
	database string
	username string
	password string

	// deviceDrivers maps a normalized device name to the technician driving it.
	deviceDrivers map[string]string

	maxCallsPerMinute int

	mu          sync.Mutex
	creds       *credentials
	windowStart time.Time
	windowCalls int
}

type credentials struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
	Database  string `json:"database"`
}

type Config struct {
	Server            string
	Database          string
	Username          string
	Password          string
	DeviceDrivers     map[string]string
	MaxCallsPerMinute int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Server == "" || cfg.Database == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("geotab: server, database, username and password are required")
	}
	if cfg.MaxCallsPerMinute <= 0 {
		cfg.MaxCallsPerMinute = 60
	}

	drivers := make(map[string]string, len(cfg.DeviceDrivers))
	for k, v := range cfg.DeviceDrivers {
		drivers[normalizeName(k)] = v
	}

	return &Client{
		session:           &http.Client{Timeout: 15 * time.Second},
		server:            strings.TrimSuffix(cfg.Server, "/"),
		database:          cfg.Database,
		username:          cfg.Username,
		password:          cfg.Password,
		deviceDrivers:     drivers,
		maxCallsPerMinute: cfg.MaxCallsPerMinute,
	}, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// allowCall enforces the soft per-minute budget for outbound calls.
func (c *Client) allowCall() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.windowCalls = 0
	}
	if c.windowCalls >= c.maxCallsPerMinute {
		return fmt.Errorf("%d calls in the current minute: %w", c.windowCalls, ErrRateLimited)
	}
	c.windowCalls++
	return nil
}

type rpcRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type rpcError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Errors  []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (e *rpcError) errorName() string {
	if len(e.Errors) > 0 && e.Errors[0].Name != "" {
		return e.Errors[0].Name
	}
	return e.Name
}

func (c *Client) endpoint() string {
	if strings.HasPrefix(c.server, "http://") || strings.HasPrefix(c.server, "https://") {
		return c.server + "/apiv1"
	}
	return "https://" + c.server + "/apiv1"
}

// rpc performs one raw JSON-RPC call without session handling.
func (c *Client) rpc(ctx context.Context, method string, params map[string]any, out any) (err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.GeotabCalls.WithLabelValues(method, status).Inc()
	}()

	if err := c.allowCall(); err != nil {
		return err
	}

	payload, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return &apiError{Method: method, Name: decoded.Error.errorName(), Message: decoded.Error.Message}
	}

	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

type apiError struct {
	Method  string
	Name    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("geotab %s: %s: %s", e.Method, e.Name, e.Message)
}

func (e *apiError) sessionExpired() bool {
	return e.Name == "InvalidUserException" || e.Name == "SessionExpiredException"
}

type authResult struct {
	Credentials credentials `json:"credentials"`
	Path        string      `json:"path"`
}

// Authenticate opens a session and stores its credentials. A returned path
// other than "ThisServer" redirects subsequent calls to that server.
func (c *Client) Authenticate(ctx context.Context) error {
	var result authResult
	err := c.rpc(ctx, "Authenticate", map[string]any{
		"userName": c.username,
		"password": c.password,
		"database": c.database,
	}, &result)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	c.mu.Lock()
	c.creds = &result.Credentials
	if result.Path != "" && result.Path != "ThisServer" {
		c.server = strings.TrimSuffix(result.Path, "/")
	}
	c.mu.Unlock()

	return nil
}

// call runs an authenticated method, authenticating first when needed and
// retrying once after a session expiry.
func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	c.mu.Lock()
	haveSession := c.creds != nil
	c.mu.Unlock()

	if !haveSession {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
	}

	withCreds := func() map[string]any {
		c.mu.Lock()
		defer c.mu.Unlock()
		p := make(map[string]any, len(params)+1)
		for k, v := range params {
			p[k] = v
		}
		p["credentials"] = c.creds
		return p
	}

	err := c.rpc(ctx, method, withCreds(), out)

	var ae *apiError
	if errors.As(err, &ae) && ae.sessionExpired() {
		log.Warn().Str("method", method).Msg("geotab session expired, re-authenticating")
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		err = c.rpc(ctx, method, withCreds(), out)
	}

	return err
}

type device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ActiveTo string `json:"activeTo"`
}

func (d device) active(now time.Time) bool {
	if d.ActiveTo == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339, d.ActiveTo)
	if err != nil {
		return true
	}
	return t.After(now)
}

// ActiveDevices lists tracked devices still active in the fleet.
func (c *Client) ActiveDevices(ctx context.Context) ([]ports.Device, error) {
	var devices []device
	err := c.call(ctx, "Get", map[string]any{
		"typeName": "Device",
	}, &devices)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	now := time.Now()
	out := make([]ports.Device, 0, len(devices))
	for _, d := range devices {
		if !d.active(now) {
			continue
		}
		out = append(out, ports.Device{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

type deviceStatus struct {
	Device struct {
		ID string `json:"id"`
	} `json:"device"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DateTime  string  `json:"dateTime"`
}

type logRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DateTime  string  `json:"dateTime"`
}

// ActivePositions returns the last known position of every active device,
// falling back to the log record trail when live status has no fix.
func (c *Client) ActivePositions(ctx context.Context) ([]ports.VehiclePosition, error) {
	devices, err := c.ActiveDevices(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ports.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}

	var statuses []deviceStatus
	err = c.call(ctx, "Get", map[string]any{
		"typeName": "DeviceStatusInfo",
	}, &statuses)
	if err != nil {
		return nil, fmt.Errorf("device status: %w", err)
	}

	out := make([]ports.VehiclePosition, 0, len(statuses))
	for _, s := range statuses {
		dev, ok := byID[s.Device.ID]
		if !ok {
			continue
		}

		coords := domain.Coordinates{Lon: s.Longitude, Lat: s.Latitude}
		when := parseWhen(s.DateTime)

		if coords.IsZero() {
			rec, err := c.latestLogRecord(ctx, s.Device.ID)
			if err != nil {
				log.Warn().Err(err).Str("device", dev.Name).Msg("log record fallback failed")
				continue
			}
			coords = domain.Coordinates{Lon: rec.Longitude, Lat: rec.Latitude}
			when = parseWhen(rec.DateTime)
			if coords.IsZero() {
				continue
			}
		}

		out = append(out, ports.VehiclePosition{
			DeviceID:   dev.ID,
			DeviceName: dev.Name,
			Driver:     c.deviceDrivers[normalizeName(dev.Name)],
			Coords:     coords,
			When:       when,
		})
	}

	return out, nil
}

// latestLogRecord fetches the newest GPS trail point of the last day.
func (c *Client) latestLogRecord(ctx context.Context, deviceID string) (logRecord, error) {
	now := time.Now().UTC()

	var records []logRecord
	err := c.call(ctx, "Get", map[string]any{
		"typeName": "LogRecord",
		"search": map[string]any{
			"deviceSearch": map[string]any{"id": deviceID},
			"fromDate":     now.Add(-24 * time.Hour).Format(time.RFC3339),
			"toDate":       now.Format(time.RFC3339),
		},
	}, &records)
	if err != nil {
		return logRecord{}, fmt.Errorf("log records for %s: %w", deviceID, err)
	}
	if len(records) == 0 {
		return logRecord{}, fmt.Errorf("no log records for %s in the last day", deviceID)
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.DateTime > latest.DateTime {
			latest = r
		}
	}
	return latest, nil
}

func parseWhen(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
