// Package app loads the client configuration and wires the services on top
// of it.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/backend"
	"github.com/xenking/resto-client/internal/domain/analytics"
	"github.com/xenking/resto-client/internal/domain/auth"
	"github.com/xenking/resto-client/internal/domain/cart"
	"github.com/xenking/resto-client/internal/domain/order"
	"github.com/xenking/resto-client/internal/domain/restaurant"
	"github.com/xenking/resto-client/internal/domain/session"
	"github.com/xenking/resto-client/internal/storage"
	"github.com/xenking/resto-client/internal/storage/memory"
	"github.com/xenking/resto-client/internal/storage/postgres"
	"github.com/xenking/resto-client/internal/storage/redis"
	"github.com/xenking/resto-client/internal/storage/sqlite"
	"github.com/xenking/resto-client/pkg/health"
	"github.com/xenking/resto-client/pkg/httptransport"
)

const defaultCheckTimeout = 5 * time.Second

// Options carry the telemetry providers and optional overrides.
type Options struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// KV replaces the configured storage driver.
	KV storage.KV
	// Transport replaces http.DefaultTransport under the instrumentation.
	Transport http.RoundTripper
	// OnExpired is called after a session is destroyed because it could not
	// be refreshed, in addition to the built-in logging.
	OnExpired apiclient.ExpiredFunc
}

// Client is the fully wired restaurant ordering client.
type Client struct {
	Config *Config
	KV     storage.KV
	HTTP   *http.Client

	Auth        *auth.Service
	Restaurants *restaurant.Service
	Cart        *cart.Cart
	Orders      *order.Service
	Analytics   *analytics.Service
	Health      *health.Health

	closers []func()
}

// New creates all dependencies and restores the persisted client state.
func New(ctx context.Context, cfg *Config, opts Options) (_ *Client, rerr error) {
	lg := zctx.From(ctx)
	c := &Client{Config: cfg, Health: health.New()}
	defer func() {
		if rerr != nil {
			c.Close()
		}
	}()

	kv := opts.KV
	if kv == nil {
		var err error
		if kv, err = c.openStorage(ctx); err != nil {
			return nil, err
		}
	}
	c.KV = kv
	if p, ok := kv.(storage.Pinger); ok {
		c.Health.AddCheck("storage", defaultCheckTimeout, health.PingCheck(p))
	}

	mode := apiclient.Mode(cfg.AuthMode)
	httpClient, err := httptransport.NewClient(httptransport.ClientConfig{
		Timeout:        cfg.Timeout,
		CookieJar:      mode == apiclient.ModeCookie,
		TracerProvider: opts.TracerProvider,
		MeterProvider:  opts.MeterProvider,
		Base:           opts.Transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create http client")
	}
	c.HTTP = httpClient
	c.Health.AddCheck("api", defaultCheckTimeout, health.HTTPCheck(httpClient, cfg.BaseURL+"/restaurant"))

	onExpired := func(ctx context.Context, scope session.Scope) {
		zctx.From(ctx).Warn("Signed out, login required", zap.String("scope", string(scope)))
		if opts.OnExpired != nil {
			opts.OnExpired(ctx, scope)
		}
	}

	authAPI := backend.NewAuth(cfg.BaseURL, httpClient, cfg.GoogleClientID)
	userStore := session.NewStore(kv, session.ScopeUser)
	adminStore := session.NewStore(kv, session.ScopeAdmin)

	userClient, err := apiclient.New(userStore, apiclient.Config{
		BaseURL:       cfg.BaseURL,
		Mode:          mode,
		Refresh:       authAPI.RefreshUser,
		OnExpired:     onExpired,
		HTTPClient:    httpClient,
		MeterProvider: opts.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create user client")
	}
	adminClient, err := apiclient.New(adminStore, apiclient.Config{
		BaseURL:       cfg.BaseURL,
		Mode:          mode,
		Refresh:       authAPI.RefreshAdmin,
		OnExpired:     onExpired,
		HTTPClient:    httpClient,
		MeterProvider: opts.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create admin client")
	}

	api := backend.NewAPI(userClient)
	c.Restaurants = restaurant.NewService(api, kv)
	if c.Cart, err = cart.New(ctx, kv); err != nil {
		return nil, err
	}
	if c.Orders, err = order.NewService(ctx, api, c.Cart, c.Restaurants, kv, order.AddonShape(cfg.AddonShape)); err != nil {
		return nil, err
	}
	c.Analytics = analytics.NewService(backend.NewAdmin(adminClient))

	c.Auth = auth.NewService(authAPI, userStore, adminStore, c.Orders.Reset)
	if err := c.Auth.Init(ctx); err != nil {
		return nil, err
	}

	lg.Debug("Client ready",
		zap.String("base_url", cfg.BaseURL),
		zap.String("auth_mode", cfg.AuthMode),
		zap.String("storage", cfg.Storage.Driver),
	)
	return c, nil
}

func (c *Client) openStorage(ctx context.Context) (storage.KV, error) {
	sc := c.Config.Storage
	switch sc.Driver {
	case DriverSQLite:
		s, err := sqlite.Open(ctx, sc.Path, sc.Namespace)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = s.Close() })
		return s, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		c.closers = append(c.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		return postgres.New(pool, sc.Namespace), nil
	case DriverRedis:
		s, err := redis.Open(ctx, sc.RedisURL, sc.Namespace)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = s.Close() })
		return s, nil
	default:
		return memory.New(), nil
	}
}

// Close releases storage connections.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
