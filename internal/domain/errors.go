package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTooSoon            = errors.New("request too soon")
	ErrAlreadyInProgress  = errors.New("generation already in progress")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrConfiguration      = errors.New("configuration error")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrEmptyPayload       = errors.New("empty payload")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidPassword    = errors.New("invalid admin password")
)

// DefaultRetryAfter is the retry window reported to callers once upstream
// rate limiting could not be absorbed by the gateway.
const DefaultRetryAfter = 60 * time.Second

type TooSoonError struct {
	Wait time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("%s: wait %ds", ErrTooSoon, e.WaitSeconds())
}

func (e *TooSoonError) Is(target error) bool { return target == ErrTooSoon }

// WaitSeconds rounds the remaining cooldown up to whole seconds.
func (e *TooSoonError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

type InsufficientCreditError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("%s: required %d, available %d", ErrInsufficientCredit, e.Required, e.Available)
}

func (e *InsufficientCreditError) Is(target error) bool { return target == ErrInsufficientCredit }

type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string { return ErrAnalysisFailed.Error() + ": " + e.Message }

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysisFailed }

func (e *AnalysisError) Unwrap() error { return e.Err }

// ConfigError signals deployment misconfiguration, never a runtime condition.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return ErrConfiguration.Error() + ": " + e.Message + ": " + e.Err.Error()
	}
	return ErrConfiguration.Error() + ": " + e.Message
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigError) Unwrap() error { return e.Err }

type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() + ": " + e.Message }

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitedError) Unwrap() error { return e.Err }

func (e *RateLimitedError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string { return ErrUpstreamFailure.Error() + ": " + e.Message }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamFailure }

func (e *UpstreamError) Unwrap() error { return e.Err }
