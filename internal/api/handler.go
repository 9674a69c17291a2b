package api

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felipepmaragno/velvet-protocol/internal/circuitbreaker"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/httputil"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/orchestrator"
	"github.com/felipepmaragno/velvet-protocol/internal/ratelimit"
	"github.com/felipepmaragno/velvet-protocol/internal/session"
	"github.com/felipepmaragno/velvet-protocol/internal/telemetry"
)

const maxBodyBytes = 64 << 10

// SessionStore is the part of *session.Store the handlers use.
type SessionStore interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
	Delete(id string) error
	Len() int
}

type AdminVerifier interface {
	Verify(password string) error
}

type HandlerConfig struct {
	Analyzer    orchestrator.Analyzer
	Generator   orchestrator.Generator
	Sessions    SessionStore
	Admin       AdminVerifier
	RateLimiter ratelimit.Limiter
	ClientRPM   int
	Checkers    []HealthChecker
	Breakers    []*circuitbreaker.Breaker
	Version     string

	// TrustForwardedFor keys the client limiter on X-Forwarded-For. Enable it
	// only behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

type Handler struct {
	analyzer    orchestrator.Analyzer
	generator   orchestrator.Generator
	sessions    SessionStore
	admin       AdminVerifier
	rateLimiter ratelimit.Limiter
	clientRPM   int
	trustXFF    bool
	checkers    []HealthChecker
	breakers    []*circuitbreaker.Breaker
	version     string
	mux         *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		analyzer:    cfg.Analyzer,
		generator:   cfg.Generator,
		sessions:    cfg.Sessions,
		admin:       cfg.Admin,
		rateLimiter: cfg.RateLimiter,
		clientRPM:   cfg.ClientRPM,
		trustXFF:    cfg.TrustForwardedFor,
		checkers:    cfg.Checkers,
		breakers:    cfg.Breakers,
		version:     cfg.Version,
		mux:         http.NewServeMux(),
	}

	h.mux.Handle("POST /analyze", h.limitClients(http.HandlerFunc(h.handleAnalyze)))
	h.mux.Handle("POST /generate", h.limitClients(http.HandlerFunc(h.handleGenerate)))

	h.mux.HandleFunc("POST /sessions", h.handleCreateSession)
	h.mux.HandleFunc("GET /sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("DELETE /sessions/{id}", h.handleDeleteSession)
	h.mux.HandleFunc("POST /sessions/{id}/admin", h.handleAdminUnlock)
	h.mux.HandleFunc("POST /sessions/{id}/run", h.handleRun)

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", handleHealthReadyWithCheckers(h.checkers, 5*time.Second, h.version))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

// ServeHTTP tags every request with an id, records the outcome and logs it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get(httputil.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(httputil.RequestIDHeader, requestID)

	ctx := logging.WithRequestID(r.Context(), requestID)
	ctx = logging.WithTraceID(ctx, telemetry.TraceID(ctx))
	ctx = httputil.WithRequestID(ctx, requestID)
	r = r.WithContext(ctx)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	metrics.RecordRequest(route, strconv.Itoa(rec.status))

	logging.FromContext(ctx).Debug().
		Str("method", r.Method).
		Str("route", route).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request handled")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// limitClients applies the per-client requests-per-minute cap.
func (h *Handler) limitClients(next http.Handler) http.Handler {
	if h.rateLimiter == nil || h.clientRPM <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		key := h.clientKey(r)
		d, err := h.rateLimiter.Allow(ctx, key, h.clientRPM)
		if err != nil {
			logger.Error().Err(err).Msg("rate limiter error")
			writeError(w, http.StatusInternalServerError, domain.ErrorResponse{Error: "internal error"})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.clientRPM))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", d.ResetAt.Format(time.RFC3339))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter(time.Now()).Seconds()))
			metrics.RecordClientRateLimitHit(r.URL.Path)
			logger.Warn().Str("client", key).Msg("client rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, domain.ErrorResponse{
				Error:      "Rate limit exceeded",
				Message:    "Too many requests from this client. Please slow down.",
				Kind:       domain.KindRateLimited,
				RateLimit:  true,
				RetryAfter: retry,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by the connection peer. The first
// X-Forwarded-For address is used only when the server sits behind a trusted
// proxy that overwrites the header.
func (h *Handler) clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); h.trustXFF && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body domain.ErrorResponse) {
	writeJSON(w, status, body)
}

// statusFor maps an error kind onto the session run endpoint's status codes.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindTooSoon, domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindAlreadyInProgress:
		return http.StatusConflict
	case domain.KindInsufficientCredit:
		return http.StatusPaymentRequired
	case domain.KindAnalysisFailed, domain.KindEmptyPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// rawMessage is the upstream diagnostic carried by err, without the
// taxonomy prefix.
func rawMessage(err error) string {
	var cfg *domain.ConfigError
	if errors.As(err, &cfg) && cfg.Err == nil {
		return cfg.Message
	}
	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		return rl.Message
	}
	var up *domain.UpstreamError
	if errors.As(err, &up) {
		return up.Message
	}
	return err.Error()
}
