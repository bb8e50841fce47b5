// Package bustrack is a client for the bustrack API. It signs users in, keeps
// their tokens in a TokenStore and refreshes them transparently.
package bustrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/bustrack/core"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 10 << 20
)

// Client talks to the bustrack API on behalf of one user
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	refreshGroup singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore replaces the default in-memory token store
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the logger. Tokens and passwords are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		store:   NewMemoryTokenStore(),
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tokens returns the stored tokens, or nil when signed out
func (c *Client) Tokens(ctx context.Context) (*TokenSet, error) {
	return c.store.Load(ctx)
}

// Authenticate signs in. On success the tokens are stored; when the server
// demands a new password the result carries a Challenge and nothing is stored.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		Challenge    string `json:"challenge"`
		Session      string `json:"session"`
	}
	if err := c.postJSON(ctx, "/auth/authenticate", map[string]string{
		"username": username,
		"password": password,
	}, &out); err != nil {
		c.logger.Info("authentication failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	if out.Challenge != "" {
		return &AuthResult{Challenge: &Challenge{
			Kind:     out.Challenge,
			Session:  out.Session,
			Username: username,
		}}, nil
	}

	tokens := &TokenSet{
		AccessToken:  out.AccessToken,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		Username:     username,
	}
	if err := c.store.Save(ctx, tokens); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}
	return &AuthResult{Tokens: tokens}, nil
}

// SetNewPassword answers a new password challenge and stores the issued tokens
func (c *Client) SetNewPassword(ctx context.Context, challenge *Challenge, newPassword, confirmation string) (*TokenSet, error) {
	if challenge == nil || challenge.Session == "" {
		return nil, ErrNoChallenge
	}
	if err := checkNewPassword(newPassword, confirmation); err != nil {
		return nil, err
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.postJSON(ctx, "/auth/set-new-password", map[string]string{
		"username":        challenge.Username,
		"newPassword":     newPassword,
		"confirmPassword": confirmation,
		"session":         challenge.Session,
	}, &out); err != nil {
		c.logger.Info("new password challenge failed", zap.String("username", challenge.Username), zap.Error(err))
		return nil, err
	}

	tokens := &TokenSet{
		AccessToken:  out.AccessToken,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		Username:     challenge.Username,
	}
	if err := c.store.Save(ctx, tokens); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}
	return tokens, nil
}

// ForgotPassword asks for a reset code to be sent to the user
func (c *Client) ForgotPassword(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrMissingCredentials
	}
	return c.postJSON(ctx, "/auth/forgot-password", map[string]string{"username": username}, nil)
}

// ConfirmForgotPassword sets a new password using a reset code
func (c *Client) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	if strings.TrimSpace(username) == "" || code == "" {
		return ErrMissingCredentials
	}
	if err := checkNewPassword(newPassword, ""); err != nil {
		return err
	}
	return c.postJSON(ctx, "/auth/confirm-forgot-password", map[string]string{
		"username":         username,
		"confirmationCode": code,
		"password":         newPassword,
	}, nil)
}

// ChangePassword changes the signed in user's password
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return ErrMissingCredentials
	}
	if err := checkNewPassword(newPassword, ""); err != nil {
		return err
	}

	tokens, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens == nil {
		return ErrReauthenticationRequired
	}

	return c.postJSON(ctx, "/auth/change-password", map[string]string{
		"username":    tokens.Username,
		"oldPassword": oldPassword,
		"newPassword": newPassword,
		"accessToken": tokens.AccessToken,
	}, nil)
}

// Logout forgets the stored tokens
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Client) ListBuses(ctx context.Context) (json.RawMessage, error) {
	var buses json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/bus/buses", nil, &buses); err != nil {
		return nil, err
	}
	return buses, nil
}

func (c *Client) AddBus(ctx context.Context, bus any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/bus/add-bus", bus, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBusForDriver returns the bus assigned to the driver with email
func (c *Client) GetBusForDriver(ctx context.Context, email string) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/driver/get-bus?" + url.Values{"email": {email}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreLocation reports the current position of a bus
func (c *Client) StoreLocation(ctx context.Context, location core.Location) error {
	if err := location.Validate(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/api/driver/store-location", location, nil)
}

// ListLocations returns the latest position of every bus
func (c *Client) ListLocations(ctx context.Context) ([]core.BusLocation, error) {
	var locations []core.BusLocation
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/get-locations", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// postJSON sends an unauthenticated request
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	return decodeResponse(resp, out)
}

// decodeResponse closes resp and decodes a 2xx body into out, or returns an *APIError
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(payload, "error").String()
		if msg == "" {
			msg = gjson.GetBytes(payload, "message").String()
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkNewPassword(password, confirmation string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	if confirmation != "" && confirmation != password {
		return ErrPasswordMismatch
	}
	return nil
}
