// Package httptransport decorates the outbound http.RoundTripper used to talk
// to the restaurant backend.
package httptransport

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware wraps a RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Wrap applies middlewares so that the first one is the outermost.
func Wrap(rt http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// Instrument records client spans and metrics with otelhttp.
func Instrument(tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		var opts []otelhttp.Option
		if tp != nil {
			opts = append(opts, otelhttp.WithTracerProvider(tp))
		}
		if mp != nil {
			opts = append(opts, otelhttp.WithMeterProvider(mp))
		}
		return otelhttp.NewTransport(next, opts...)
	}
}

// LogRequests logs every round trip at debug level with the logger carried
// by the request context.
func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			lg := zctx.From(r.Context()).With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", r.Header.Get(HeaderRequestID)),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				lg.Debug("Request failed", zap.Error(err))
				return nil, err
			}
			lg.Debug("Request done", zap.Int("status", resp.StatusCode))
			return resp, nil
		})
	}
}
