package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/felipepmaragno/velvet-protocol/internal/cache"
	"github.com/felipepmaragno/velvet-protocol/internal/circuitbreaker"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/vertex"
)

// MockModels implements vertex.Models for testing
type MockModels struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Calls               int
}

func (m *MockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.Calls++
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return textResponse(`{"detectedVibe":"calm","directorScript":"script","enhancedPrompt":"enhanced"}`), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestEngine(m *MockModels, opts Options) *Engine {
	return NewEngine(vertex.StaticProvider{M: m}, opts)
}

func TestEngine_Analyze_Success(t *testing.T) {
	var gotModel, gotUser, gotSystem string
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotUser = contents[0].Parts[0].Text
			gotSystem = config.SystemInstruction.Parts[0].Text
			return textResponse("```json\n{\"detectedVibe\":\"gourmet\",\"directorScript\":\"script\",\"enhancedPrompt\":\"A tart, flat lay\"}\n```"), nil
		},
	}

	ep, err := newTestEngine(m, Options{}).Analyze(context.Background(), "lemon tart", domain.ModeOrganic)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, gotModel)
	assert.Equal(t, `USER INPUT: "lemon tart"`, gotUser)
	assert.Contains(t, gotSystem, "CURRENT MODE: ORGANIC")
	assert.Equal(t, "A tart, flat lay", ep.EnhancedPrompt)
	assert.Equal(t, "gourmet", ep.DetectedVibe)
	assert.False(t, ep.Fallback)
}

func TestEngine_Analyze_InvalidInput(t *testing.T) {
	m := &MockModels{}
	e := newTestEngine(m, Options{})

	_, err := e.Analyze(context.Background(), "   ", domain.ModeClay)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.Analyze(context.Background(), "mug", "noir")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Zero(t, m.Calls)
}

func TestEngine_Analyze_FallbackOnModelError(t *testing.T) {
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("deadline exceeded upstream")
		},
	}

	ep, err := newTestEngine(m, Options{}).Analyze(context.Background(), "yoga mat", domain.ModeEthereal)
	require.NoError(t, err)
	assert.True(t, ep.Fallback)
	assert.Equal(t, Fallback("yoga mat", domain.ModeEthereal), ep)
}

func TestEngine_Analyze_FallbackOnUnparseableText(t *testing.T) {
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("Sorry, I can only describe products."), nil
		},
	}

	ep, err := newTestEngine(m, Options{}).Analyze(context.Background(), "yoga mat", domain.ModeEthereal)
	require.NoError(t, err)
	assert.True(t, ep.Fallback)
}

func TestEngine_Analyze_ConfigErrorSurfaces(t *testing.T) {
	e := NewEngine(vertex.NewClientProvider(vertex.Config{}), Options{})

	_, err := e.Analyze(context.Background(), "mug", domain.ModeClay)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEngine_Analyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			cancel()
			return nil, ctx.Err()
		},
	}

	_, err := newTestEngine(m, Options{}).Analyze(ctx, "mug", domain.ModeClay)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Analyze_UsesCache(t *testing.T) {
	c := cache.NewInMemoryCache()
	t.Cleanup(func() { c.Close() })
	m := &MockModels{}
	e := newTestEngine(m, Options{Cache: c, CacheTTL: time.Minute})

	first, err := e.Analyze(context.Background(), "mug", domain.ModeClay)
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), " mug ", domain.ModeClay)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Calls)
}

func TestEngine_Analyze_FallbackNotCached(t *testing.T) {
	c := cache.NewInMemoryCache()
	t.Cleanup(func() { c.Close() })
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("no json"), nil
		},
	}
	e := newTestEngine(m, Options{Cache: c})

	_, _ = e.Analyze(context.Background(), "mug", domain.ModeClay)
	_, _ = e.Analyze(context.Background(), "mug", domain.ModeClay)

	assert.Equal(t, 2, m.Calls)
	assert.Zero(t, c.Len())
}

func TestEngine_Analyze_OpenBreakerSkipsModel(t *testing.T) {
	m := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("503 unavailable")
		},
	}
	b := circuitbreaker.New("analysis-test", circuitbreaker.Config{FailureThreshold: 1, HalfOpenRequests: 1, Timeout: time.Minute})
	e := newTestEngine(m, Options{Breaker: b})

	ep, err := e.Analyze(context.Background(), "mug", domain.ModeClay)
	require.NoError(t, err)
	assert.True(t, ep.Fallback)

	ep, err = e.Analyze(context.Background(), "mug", domain.ModeClay)
	require.NoError(t, err)
	assert.True(t, ep.Fallback)

	assert.Equal(t, 1, m.Calls, "open breaker must short-circuit the model")
}
