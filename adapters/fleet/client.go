package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/internal/metrics"
	"github.com/layer-3/bustrack/ports"
)

const maxBodySize = 10 << 20

// Endpoints are the URLs of the serverless functions behind the fleet API
type Endpoints struct {
	BusList       string
	BusCreate     string
	DriverBus     string
	LocationStore string
	LocationList  string
	UserCreate    string
}

// Client implements ports.Fleet by forwarding requests with the caller's bearer token
type Client struct {
	base      http.RoundTripper
	timeout   time.Duration
	endpoints Endpoints
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

var _ ports.Fleet = (*Client)(nil)

// NewClient creates a fleet client. base may be nil to use http.DefaultTransport.
func NewClient(endpoints Endpoints, base http.RoundTripper, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:      base,
		timeout:   timeout,
		endpoints: endpoints,
		logger:    logger.Named("fleet"),
		metrics:   m,
	}
}

// httpClient returns a client that attaches bearer to every request
func (c *Client) httpClient(bearer string) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Base:   c.base,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}),
		},
	}
}

// do forwards one request. Non-2xx answers come back as *core.UpstreamError.
func (c *Client) do(ctx context.Context, service, method, target, bearer string, body []byte) (*core.Upstream, error) {
	if target == "" {
		return nil, core.NewError(core.ErrConfiguration, fmt.Sprintf("%s endpoint is not configured", service), nil)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient(bearer).Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(service, 0)
		c.logger.Warn("upstream call failed", zap.String("service", service), zap.Error(err))
		return nil, core.NewError(core.ErrUpstream, "Upstream service unavailable.", err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveUpstream(service, resp.StatusCode)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, core.NewError(core.ErrUpstream, "Failed to read upstream response.", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Info("upstream returned error status", zap.String("service", service), zap.Int("status", resp.StatusCode))
		return nil, &core.UpstreamError{StatusCode: resp.StatusCode, Body: payload}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &core.Upstream{StatusCode: resp.StatusCode, ContentType: contentType, Body: payload}, nil
}

// ListBuses returns the "buses" array of the registry response
func (c *Client) ListBuses(ctx context.Context, bearer string) (json.RawMessage, error) {
	up, err := c.do(ctx, "bus_list", http.MethodGet, c.endpoints.BusList, bearer, nil)
	if err != nil {
		return nil, err
	}

	buses := gjson.GetBytes(up.Body, "buses")
	if !buses.Exists() || buses.Type == gjson.Null || !buses.IsArray() {
		return nil, core.NewError(core.ErrNotFound, "No buses found.", nil)
	}

	return json.RawMessage(buses.Raw), nil
}

// CreateBus forwards a bus record as-is
func (c *Client) CreateBus(ctx context.Context, bearer string, bus json.RawMessage) (*core.Upstream, error) {
	return c.do(ctx, "bus_create", http.MethodPost, c.endpoints.BusCreate, bearer, bus)
}

// GetBusForDriver looks up the bus assigned to the driver with email
func (c *Client) GetBusForDriver(ctx context.Context, bearer, email string) (*core.Upstream, error) {
	target := c.endpoints.DriverBus
	if target != "" {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid driver bus endpoint: %w", err)
		}
		q := u.Query()
		q.Set("email", email)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	return c.do(ctx, "driver_bus", http.MethodGet, target, bearer, nil)
}

// StoreLocation forwards a validated location report
func (c *Client) StoreLocation(ctx context.Context, bearer string, location core.Location) (*core.Upstream, error) {
	body, err := json.Marshal(location)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}
	return c.do(ctx, "location_store", http.MethodPost, c.endpoints.LocationStore, bearer, body)
}

// ListLocations returns the latest location of every bus
func (c *Client) ListLocations(ctx context.Context, bearer string) ([]core.BusLocation, error) {
	up, err := c.do(ctx, "location_list", http.MethodGet, c.endpoints.LocationList, bearer, nil)
	if err != nil {
		return nil, err
	}

	var locations []core.BusLocation
	if err := json.Unmarshal(up.Body, &locations); err != nil {
		return nil, core.NewError(core.ErrUpstream, "Malformed location response.", err)
	}
	if len(locations) == 0 {
		return nil, core.NewError(core.ErrNotFound, "No buses found.", nil)
	}

	return locations, nil
}

// CreateUser forwards a user record to the user creation function
func (c *Client) CreateUser(ctx context.Context, bearer string, user json.RawMessage) (*core.Upstream, error) {
	return c.do(ctx, "user_create", http.MethodPost, c.endpoints.UserCreate, bearer, user)
}
