package gateway

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

// IsRateLimitError reports whether err is an upstream quota rejection.
//
// The structured checks cover genai.APIError and anything exposing an HTTP
// status. The SDK does not surface a status for every quota failure, so the
// final check matches the message text for "429" or "Quota exceeded". Expect
// false positives on messages that merely mention 429.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == http.StatusTooManyRequests {
		return true
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() == http.StatusTooManyRequests {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Quota exceeded")
}
