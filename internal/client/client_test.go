package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_Analyze(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req domain.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mug", req.Prompt)
		assert.Equal(t, "clay", req.Mode)

		writeJSON(w, http.StatusOK, domain.AnalyzeResponse{
			Success:  true,
			Analysis: &domain.EnrichedPrompt{EnhancedPrompt: "clay mug", Mode: domain.ModeClay},
		})
	})

	ep, err := c.Analyze(context.Background(), "mug", domain.ModeClay)
	require.NoError(t, err)
	assert.Equal(t, "clay mug", ep.EnhancedPrompt)
}

func TestClient_Generate(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)

		var req domain.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "video", req.OutputType)

		writeJSON(w, http.StatusOK, domain.GenerateResponse{
			Success:    true,
			OutputType: domain.OutputVideo,
			ResultURL:  "gs://bucket/clip.mp4",
			Model:      "veo-3.1",
			CreditCost: 10,
		})
	})

	res, err := c.Generate(context.Background(), "runner", domain.OutputVideo)
	require.NoError(t, err)
	assert.Equal(t, &domain.GenerationResult{
		OutputKind:    domain.OutputVideo,
		ResultLocator: "gs://bucket/clip.mp4",
		Model:         "veo-3.1",
		CreditCost:    10,
	}, res)
}

func TestClient_Generate_RateLimited(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, domain.ErrorResponse{
			Error:      "Rate limit exceeded",
			Message:    "Quota exceeded for imagen",
			RateLimit:  true,
			RetryAfter: 60,
		})
	})

	_, err := c.Generate(context.Background(), "mug", domain.OutputImage)

	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 60*time.Second, rl.RetryAfter)
	assert.Equal(t, "Quota exceeded for imagen", rl.Message)
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   domain.ErrorKind
	}{
		{"kind configuration", 500, domain.ErrorResponse{Error: "Generation failed", Message: "no project", Kind: domain.KindConfiguration}, domain.KindConfiguration},
		{"kind empty payload", 500, domain.ErrorResponse{Error: "Generation failed", Message: "no candidates", Kind: domain.KindEmptyPayload}, domain.KindEmptyPayload},
		{"bare 400", 400, domain.ErrorResponse{Error: "Missing enhancedPrompt"}, domain.KindInvalidInput},
		{"bare 500", 500, domain.ErrorResponse{Error: "Generation failed", Message: "boom"}, domain.KindUpstreamFailure},
		{"non json 502", 502, "bad gateway", domain.KindUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				if s, ok := tt.body.(string); ok {
					w.WriteHeader(tt.status)
					w.Write([]byte(s))
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.Generate(context.Background(), "mug", domain.OutputImage)
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)

	_, err := c.Analyze(context.Background(), "mug", domain.ModeClay)
	assert.Equal(t, domain.KindUpstreamFailure, domain.KindOf(err))
}
