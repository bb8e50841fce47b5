package bustrack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Do sends req with the stored access token. When the server answers 401 the
// tokens are refreshed once and the request is replayed once; the body is
// buffered for that. A second 401, or a refresh the server rejects, clears the
// token store and returns ErrReauthenticationRequired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
	}

	tokens, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return nil, ErrReauthenticationRequired
	}

	resp, err := c.send(req, body, tokens.AccessToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	fresh, err := c.refreshStale(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(req, body, fresh.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		c.logger.Info("request rejected after refresh, clearing tokens")
		c.clear(ctx)
		return nil, ErrReauthenticationRequired
	}
	return resp, nil
}

func (c *Client) send(req *http.Request, body []byte, accessToken string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if body != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	r.Header.Set("Authorization", "Bearer "+accessToken)
	return c.http.Do(r)
}

// Refresh exchanges the stored refresh token for a new access token
func (c *Client) Refresh(ctx context.Context) (*TokenSet, error) {
	tokens, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens == nil {
		return nil, ErrReauthenticationRequired
	}
	return c.refreshStale(ctx, tokens.AccessToken)
}

// refreshStale refreshes unless someone else already replaced the stale access token.
// Concurrent callers holding the same stale token share one refresh call.
func (c *Client) refreshStale(ctx context.Context, stale string) (*TokenSet, error) {
	ch := c.refreshGroup.DoChan(stale, func() (any, error) {
		// The flight outlives any single caller's cancellation
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		current, err := c.store.Load(fctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tokens: %w", err)
		}
		if current == nil || current.RefreshToken == "" {
			return nil, ErrReauthenticationRequired
		}
		if current.AccessToken != stale {
			return current, nil
		}
		return c.refresh(fctx, current)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TokenSet), nil
	}
}

func (c *Client) refresh(ctx context.Context, current *TokenSet) (*TokenSet, error) {
	var out struct {
		AccessToken  string `json:"accessToken"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	err := c.postJSON(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": current.RefreshToken,
		"username":     current.Username,
	}, &out)

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && refreshRejected(apiErr.StatusCode):
		c.logger.Info("refresh rejected, clearing tokens", zap.Int("status", apiErr.StatusCode))
		c.clear(ctx)
		return nil, fmt.Errorf("%w: %w", ErrReauthenticationRequired, err)
	case err != nil:
		return nil, fmt.Errorf("refresh failed: %w", err)
	case out.AccessToken == "":
		c.clear(ctx)
		return nil, ErrReauthenticationRequired
	}

	next := &TokenSet{
		AccessToken:  out.AccessToken,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		Username:     current.Username,
	}
	if next.IDToken == "" {
		next.IDToken = current.IDToken
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if out.ExpiresIn > 0 {
		next.Expiry = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}

	if err := c.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}
	return next, nil
}

// refreshRejected reports whether status means the refresh token itself was refused.
// Throttling and server failures leave the stored tokens alone.
func refreshRejected(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func (c *Client) clear(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear tokens")
	}
}

// doJSON sends an authorized request and decodes a 2xx JSON answer into out
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
