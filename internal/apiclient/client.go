// Package apiclient issues authenticated requests against the restaurant
// backend. On a 401 it refreshes the scope's credentials once and retries
// the original request once; anything after that is a terminal
// ErrSessionExpired.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/resto-client/internal/domain/session"
)

// RefreshFunc exchanges a refresh credential for new tokens. In cookie mode
// refreshToken is empty and the credential travels in the cookie jar.
type RefreshFunc func(ctx context.Context, refreshToken string) (session.Tokens, error)

// ExpiredFunc is invoked after a session has been destroyed because it could
// not be refreshed. Callers use it to send the user back to login.
type ExpiredFunc func(ctx context.Context, scope session.Scope)

// Config holds the non-dependency settings of a Client.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string
	// Mode selects how credentials are attached. Defaults to ModeBearer.
	Mode Mode
	// Refresh is required; it is called at most once per 401.
	Refresh RefreshFunc
	// OnExpired is optional.
	OnExpired ExpiredFunc
	// HTTPClient defaults to http.DefaultClient. In cookie mode it must carry
	// a cookie jar.
	HTTPClient *http.Client
	// MeterProvider defaults to a no-op provider.
	MeterProvider metric.MeterProvider
}

// Request describes one call. Body must already be serialized.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Client is an authenticated request client bound to one credential scope.
type Client struct {
	baseURL   string
	http      *http.Client
	store     *session.Store
	mode      Mode
	refresh   RefreshFunc
	onExpired ExpiredFunc

	flight    singleflight.Group
	refreshes metric.Int64Counter
}

// New returns a Client that reads and updates credentials in store.
func New(store *session.Store, cfg Config) (*Client, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Refresh == nil {
		return nil, errors.New("refresh func is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBearer
	}
	if err := cfg.Mode.Validate(); err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Mode == ModeCookie && cfg.HTTPClient.Jar == nil {
		return nil, errors.New("cookie mode requires an http client with a cookie jar")
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = noop.NewMeterProvider()
	}

	counter, err := cfg.MeterProvider.
		Meter("github.com/xenking/resto-client/internal/apiclient").
		Int64Counter("resto.client.refresh",
			metric.WithDescription("Access token refresh attempts"),
		)
	if err != nil {
		return nil, errors.Wrap(err, "create refresh counter")
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      cfg.HTTPClient,
		store:     store,
		mode:      cfg.Mode,
		refresh:   cfg.Refresh,
		onExpired: cfg.OnExpired,
		refreshes: counter,
	}, nil
}

// Scope returns the credential scope the client acts for.
func (c *Client) Scope() session.Scope { return c.store.Scope() }

// Do sends req with the current credentials. A 401 triggers exactly one
// refresh-and-retry cycle. Other non-2xx responses are returned to the
// caller unchanged, except 403 on the admin scope which becomes a
// *ForbiddenError. The caller must close the returned body.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	token := c.store.AccessToken()
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)

		if err := c.renew(ctx, token); err != nil {
			return nil, c.expire(ctx, err)
		}

		resp, err = c.send(ctx, req, c.store.AccessToken())
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			discard(resp)
			return nil, c.expire(ctx, errors.New("retried request was rejected"))
		}
	}

	if resp.StatusCode == http.StatusForbidden && c.Scope() == session.ScopeAdmin {
		se := ReadError(resp)
		_ = resp.Body.Close()
		zctx.From(ctx).Info("Admin request forbidden",
			zap.String("path", req.Path),
			zap.String("message", se.Message),
		)
		return nil, &ForbiddenError{Path: req.Path, Message: se.Message}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req *Request, token string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, c.url(req.Path), body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if req.Body != nil && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", "application/json")
	}
	hr.Header.Set("Accept", "application/json")
	if c.mode == ModeBearer && token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	return resp, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// renew refreshes the credentials that were rejected. When another caller
// already replaced usedToken, the fresh token is reused without a new
// refresh call.
func (c *Client) renew(ctx context.Context, usedToken string) error {
	if !c.store.Active() {
		return errors.New("no session")
	}
	if c.replaced(usedToken) {
		return nil
	}

	refreshToken := ""
	if c.mode == ModeBearer {
		refreshToken = c.store.RefreshToken()
		if refreshToken == "" {
			return errors.New("no refresh token")
		}
	}

	_, err, _ := c.flight.Do(refreshToken, func() (any, error) {
		if c.replaced(usedToken) {
			return nil, nil
		}
		lg := zctx.From(ctx)
		lg.Debug("Refreshing access token", zap.String("scope", string(c.Scope())))

		tokens, err := c.refresh(ctx, refreshToken)
		if err != nil {
			c.count(ctx, "failed")
			return nil, errors.Wrap(err, "refresh")
		}
		if c.mode == ModeBearer && tokens.Access == "" {
			c.count(ctx, "failed")
			return nil, errors.New("refresh returned no access token")
		}
		if err := c.store.UpdateTokens(ctx, tokens); err != nil {
			c.count(ctx, "failed")
			return nil, err
		}
		c.count(ctx, "ok")
		return nil, nil
	})
	return err
}

// replaced reports whether a concurrent refresh already swapped out the
// bearer token that was rejected.
func (c *Client) replaced(usedToken string) bool {
	if c.mode != ModeBearer {
		return false
	}
	current := c.store.AccessToken()
	return current != "" && current != usedToken
}

func (c *Client) count(ctx context.Context, outcome string) {
	c.refreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", string(c.Scope())),
		attribute.String("outcome", outcome),
	))
}

// expire destroys the session, runs the expiry hook and returns the terminal
// error.
func (c *Client) expire(ctx context.Context, cause error) error {
	lg := zctx.From(ctx)
	lg.Warn("Session expired",
		zap.String("scope", string(c.Scope())),
		zap.Error(cause),
	)
	if err := c.store.Clear(ctx); err != nil {
		lg.Error("Clear expired session", zap.Error(err))
	}
	if c.onExpired != nil {
		c.onExpired(ctx, c.Scope())
	}
	return &SessionExpiredError{Scope: c.Scope(), Cause: cause}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
