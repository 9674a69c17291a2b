package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
}

type HealthStatus struct {
	Status   string                 `json:"status"`
	Checks   map[string]CheckResult `json:"checks,omitempty"`
	Version  string                 `json:"version,omitempty"`
	Sessions *int                   `json:"sessions,omitempty"`
	Breakers map[string]string      `json:"circuitBreakers,omitempty"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Pinger is satisfied by the Redis-backed cache and limiter.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingChecker struct {
	name   string
	pinger Pinger
}

func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) error {
	return c.pinger.Ping(ctx)
}

// ConfiguredChecker reports whether a static precondition holds, such as the
// upstream project being set.
type ConfiguredChecker struct {
	name       string
	configured func() bool
}

func NewConfiguredChecker(name string, configured func() bool) *ConfiguredChecker {
	return &ConfiguredChecker{name: name, configured: configured}
}

func (c *ConfiguredChecker) Name() string { return c.name }

func (c *ConfiguredChecker) Check(ctx context.Context) error {
	if !c.configured() {
		return errors.New("not configured")
	}
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	n := h.sessions.Len()
	status := HealthStatus{
		Status:   "healthy",
		Version:  h.version,
		Sessions: &n,
	}
	// An open breaker degrades analysis to the fallback template; the
	// service itself stays healthy.
	if len(h.breakers) > 0 {
		status.Breakers = make(map[string]string, len(h.breakers))
		for _, b := range h.breakers {
			status.Breakers[b.Name()] = b.State().String()
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "alive"})
}

// runHealthChecks executes all health checks concurrently.
func runHealthChecks(ctx context.Context, checkers []HealthChecker) map[string]CheckResult {
	results := make(map[string]CheckResult, len(checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)

			result := CheckResult{
				Status:   "ok",
				Duration: time.Since(start).String(),
			}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}

			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

func handleHealthReadyWithCheckers(checkers []HealthChecker, timeout time.Duration, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := runHealthChecks(ctx, checkers)

		status := HealthStatus{
			Status:  "ready",
			Checks:  results,
			Version: version,
		}
		httpStatus := http.StatusOK
		for _, result := range results {
			if result.Status != "ok" {
				status.Status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, httpStatus, status)
	}
}
