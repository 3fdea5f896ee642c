package httptransport

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ClientConfig configures NewClient.
type ClientConfig struct {
	Timeout time.Duration
	// CookieJar attaches a jar so HttpOnly session cookies set by the backend
	// are sent back on later requests.
	CookieJar      bool
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// NewClient builds the shared HTTP client: request ids, debug logging and
// otel instrumentation around the base transport.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	c := &http.Client{
		Timeout: cfg.Timeout,
		Transport: Wrap(cfg.Base,
			Instrument(cfg.TracerProvider, cfg.MeterProvider),
			RequestID(),
			LogRequests(),
		),
	}
	if cfg.CookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "create cookie jar")
		}
		c.Jar = jar
	}
	return c, nil
}
