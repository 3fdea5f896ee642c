package health

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
)

// PingCheck adapts anything with a Ping method, such as a database pool or
// a Redis-backed store.
func PingCheck(p interface{ Ping(ctx context.Context) error }) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// HTTPCheck returns a CheckFunc that reports unhealthy when url cannot be
// reached or answers with a 5xx status. Client errors still prove the server
// is up and are accepted.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, "request")
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}
