// Package circuitbreaker guards calls to the upstream text model. When the
// model keeps failing the breaker opens and callers fail fast, which lets the
// analysis stage serve its fixed template instead of waiting on a dead upstream.
//
// States:
//   - Closed: normal operation, calls pass through
//   - Open: upstream unhealthy, calls fail immediately
//   - Half-Open: probing recovery with a limited number of calls
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/notifications"
)

const notifyTimeout = 5 * time.Second

// Config defines circuit breaker behavior.
type Config struct {
	FailureThreshold uint32        // Consecutive failures before opening
	HalfOpenRequests uint32        // Calls allowed while half-open
	Interval         time.Duration // Closed-state counter reset period, 0 keeps counts
	Timeout          time.Duration // Time before transitioning to half-open

	// Notifier, when set, is told each time the breaker opens.
	Notifier notifications.Notifier
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		HalfOpenRequests: 1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func New(name string, cfg Config) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, stateValue(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if to == gobreaker.StateOpen && cfg.Notifier != nil {
				go notifyOpen(cfg.Notifier, name, from)
			}
		},
	}

	metrics.SetCircuitBreakerState(name, stateValue(gobreaker.StateClosed))

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// notifyOpen runs outside the breaker's lock so a slow publisher never
// blocks callers.
func notifyOpen(n notifications.Notifier, name string, from gobreaker.State) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	err := n.Send(ctx, notifications.Notification{
		Type:    notifications.NotificationUpstreamDown,
		Message: fmt.Sprintf("circuit breaker %s opened", name),
		Data:    map[string]any{"breaker": name, "from": from.String()},
	})
	if err != nil {
		log.Warn().Err(err).Str("breaker", name).Msg("failed to send breaker notification")
	}
}

// Do runs fn through the breaker b. It returns fn's error unchanged, or an
// error matching IsOpen when the call was rejected without running.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// IsOpen reports whether err is a breaker rejection rather than an upstream error.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
