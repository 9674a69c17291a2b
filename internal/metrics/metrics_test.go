package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	RequestsTotal.Reset()

	RecordRequest("/generate", "200")
	RecordRequest("/generate", "200")

	count := testutil.ToFloat64(RequestsTotal.WithLabelValues("/generate", "200"))
	if count != 2 {
		t.Errorf("RequestsTotal = %v, want 2", count)
	}
}

func TestRecordRateLimitRetry(t *testing.T) {
	RateLimitRetries.Reset()

	RecordRateLimitRetry("imagen-3.0-generate-001")
	RecordRateLimitRetry("imagen-3.0-generate-001")

	retries := testutil.ToFloat64(RateLimitRetries.WithLabelValues("imagen-3.0-generate-001"))
	if retries != 2 {
		t.Errorf("RateLimitRetries = %v, want 2", retries)
	}
}

func TestRecordCreditsDebited(t *testing.T) {
	CreditsDebited.Reset()

	RecordCreditsDebited("video", 10)
	RecordCreditsDebited("image", 1)

	if v := testutil.ToFloat64(CreditsDebited.WithLabelValues("video")); v != 10 {
		t.Errorf("video credits = %v, want 10", v)
	}
	if v := testutil.ToFloat64(CreditsDebited.WithLabelValues("image")); v != 1 {
		t.Errorf("image credits = %v, want 1", v)
	}
}

func TestRecordGuardRejection(t *testing.T) {
	GuardRejections.Reset()

	RecordGuardRejection("too_soon")
	RecordGuardRejection("already_in_progress")
	RecordGuardRejection("too_soon")

	if v := testutil.ToFloat64(GuardRejections.WithLabelValues("too_soon")); v != 2 {
		t.Errorf("too_soon = %v, want 2", v)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("analysis", 2)

	state := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("analysis"))
	if state != 2 {
		t.Errorf("CircuitBreakerState = %v, want 2", state)
	}
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(3)

	if v := testutil.ToFloat64(ActiveSessions); v != 3 {
		t.Errorf("ActiveSessions = %v, want 3", v)
	}
}
