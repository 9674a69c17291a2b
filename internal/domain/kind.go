package domain

import (
	"errors"
	"fmt"
)

// ErrorKind names one outcome of the error taxonomy.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindInvalidInput       ErrorKind = "invalid_input"
	KindTooSoon            ErrorKind = "too_soon"
	KindAlreadyInProgress  ErrorKind = "already_in_progress"
	KindInsufficientCredit ErrorKind = "insufficient_credit"
	KindAnalysisFailed     ErrorKind = "analysis_failed"
	KindConfiguration      ErrorKind = "configuration_error"
	KindRateLimited        ErrorKind = "rate_limited"
	KindEmptyPayload       ErrorKind = "empty_payload"
	KindUpstreamFailure    ErrorKind = "upstream_failure"
)

// KindOf classifies err. Orchestrator-level kinds are checked first so an
// AnalysisError wrapping a ConfigError still reports analysis_failed.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrTooSoon):
		return KindTooSoon
	case errors.Is(err, ErrAlreadyInProgress):
		return KindAlreadyInProgress
	case errors.Is(err, ErrInsufficientCredit):
		return KindInsufficientCredit
	case errors.Is(err, ErrAnalysisFailed):
		return KindAnalysisFailed
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrEmptyPayload):
		return KindEmptyPayload
	default:
		return KindUpstreamFailure
	}
}

// UserMessage maps err to the one human-readable message shown for its kind.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindInvalidInput:
		return fmt.Sprintf("Please enter a prompt (1-%d characters) and pick a mode and output type. (%v)", MaxPromptLength, err)
	case KindTooSoon:
		var e *TooSoonError
		if errors.As(err, &e) {
			return fmt.Sprintf("Please wait %d second(s) before generating again.", e.WaitSeconds())
		}
		return "Please wait a moment before generating again."
	case KindAlreadyInProgress:
		return "A generation is already in progress. Please wait for it to finish."
	case KindInsufficientCredit:
		var e *InsufficientCreditError
		if errors.As(err, &e) {
			msg := fmt.Sprintf("Not enough credits! Required: %d credits, available: %d credits.", e.Required, e.Available)
			if e.Required > OutputImage.CreditCost() && e.Available >= OutputImage.CreditCost() {
				msg += " Try generating an image (1 credit) instead."
			}
			return msg
		}
		return "Not enough credits."
	case KindAnalysisFailed:
		return fmt.Sprintf("Prompt analysis failed: %v", err)
	case KindConfiguration:
		return fmt.Sprintf("The server is not configured for generation: %v", err)
	case KindRateLimited:
		var e *RateLimitedError
		if errors.As(err, &e) {
			return fmt.Sprintf("Upstream quota exceeded. Please try again in %d seconds. (%s)", e.RetryAfterSeconds(), e.Message)
		}
		return fmt.Sprintf("Upstream quota exceeded. Please try again in %d seconds.", int(DefaultRetryAfter.Seconds()))
	case KindEmptyPayload:
		return "The model returned no usable content. Please try again with a different prompt."
	default:
		return fmt.Sprintf("Generation failed: %v", err)
	}
}
