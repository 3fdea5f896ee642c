// Package health runs one-shot checks against the dependencies of the client
// (backend API, state storage) and reports the outcome of each.
//
// All checks run concurrently, each under its own timeout. A failing check
// never cancels the others.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

type checkConfig struct {
	name    string
	timeout time.Duration
	check   CheckFunc
}

// Result is the outcome of a single check.
type Result struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Healthy reports whether the check passed.
func (r Result) Healthy() bool { return r.Err == nil }

// Report lists results sorted by check name.
type Report []Result

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	for _, res := range r {
		if !res.Healthy() {
			return false
		}
	}
	return true
}

// Failures maps the names of failed checks to their error messages.
func (r Report) Failures() map[string]string {
	failures := make(map[string]string)
	for _, res := range r {
		if res.Err != nil {
			failures[res.Name] = res.Err.Error()
		}
	}
	return failures
}

// Health holds the registered checks.
type Health struct {
	mu     sync.RWMutex
	checks []*checkConfig
}

// New creates an empty Health.
func New() *Health {
	return &Health{}
}

// AddCheck registers a check. A non-positive timeout means the check is only
// bounded by the context passed to Run.
func (h *Health) AddCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, &checkConfig{
		name:    name,
		timeout: timeout,
		check:   check,
	})
}

// Run executes every check once and waits for all of them.
func (h *Health) Run(ctx context.Context) Report {
	h.mu.RLock()
	checks := make([]*checkConfig, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	report := make(Report, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			report[i] = c.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report
}

func (c *checkConfig) run(ctx context.Context) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.check(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return Result{Name: c.name, Duration: time.Since(start), Err: err}
}
