// Package prompt implements Stage A: it turns a raw prompt and a mode into an
// enriched director script using the upstream text model, degrading to a
// fixed template when the model is unavailable or answers with no JSON.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/felipepmaragno/velvet-protocol/internal/cache"
	"github.com/felipepmaragno/velvet-protocol/internal/circuitbreaker"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/telemetry"
	"github.com/felipepmaragno/velvet-protocol/internal/vertex"
)

const DefaultModel = "gemini-1.5-pro"

const stageName = "analysis"

type Options struct {
	Model    string
	Cache    cache.Cache
	CacheTTL time.Duration
	Breaker  *circuitbreaker.Breaker
}

type Engine struct {
	provider vertex.ModelsProvider
	model    string
	cache    cache.Cache
	cacheTTL time.Duration
	breaker  *circuitbreaker.Breaker
}

func NewEngine(provider vertex.ModelsProvider, opts Options) *Engine {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(stageName, circuitbreaker.DefaultConfig())
	}
	return &Engine{
		provider: provider,
		model:    opts.Model,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		breaker:  opts.Breaker,
	}
}

// Analyze produces the enriched prompt for rawPrompt in mode. Configuration
// errors are returned as is; model and parse failures yield the fallback.
func (e *Engine) Analyze(ctx context.Context, rawPrompt string, mode domain.Mode) (*domain.EnrichedPrompt, error) {
	ctx, span := telemetry.StartSpan(ctx, "prompt.Analyze")
	defer span.End()
	telemetry.AddModelAttribute(span, e.model)

	logger := logging.FromContext(ctx).With().Str("stage", stageName).Str("mode", string(mode)).Logger()
	start := time.Now()

	input := strings.TrimSpace(rawPrompt)
	if input == "" {
		return nil, fmt.Errorf("%w: prompt is empty", domain.ErrInvalidInput)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	}

	key := cache.Key(mode, input)
	if e.cache != nil {
		if ep, ok := e.cache.Get(ctx, key); ok {
			metrics.RecordCacheHit()
			telemetry.AddCacheAttribute(span, true)
			metrics.RecordStage(stageName, "cache_hit", time.Since(start).Seconds())
			logger.Debug().Msg("analysis served from cache")
			return ep, nil
		}
		metrics.RecordCacheMiss()
		telemetry.AddCacheAttribute(span, false)
	}

	models, err := e.provider.Models(ctx)
	if err != nil {
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordStage(stageName, "config_error", time.Since(start).Seconds())
		logger.Error().Err(err).Msg("analysis not configured")
		return nil, err
	}

	logger.Info().Str("model", e.model).Msg("analysis started")

	text, err := circuitbreaker.Do(e.breaker, func() (string, error) {
		return e.callModel(ctx, models, input, mode)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			telemetry.AddErrorAttribute(span, ctxErr)
			return nil, &domain.UpstreamError{Message: "analysis cancelled", Err: ctxErr}
		}
		reason := "model_error"
		if circuitbreaker.IsOpen(err) {
			reason = "circuit_open"
		}
		return e.fallback(logger, span, start, input, mode, reason, err), nil
	}

	ep, err := ParseAnalysis(text, mode)
	if err != nil {
		return e.fallback(logger, span, start, input, mode, "parse_error", err), nil
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, ep, e.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache analysis")
		}
	}

	telemetry.AddFallbackAttribute(span, false)
	metrics.RecordStage(stageName, "ok", time.Since(start).Seconds())
	logger.Info().
		Str("vibe", ep.DetectedVibe).
		Int("script_length", len(ep.DirectorScript)).
		Dur("duration", time.Since(start)).
		Msg("analysis completed")

	return ep, nil
}

func (e *Engine) callModel(ctx context.Context, models vertex.Models, input string, mode domain.Mode) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemInstruction(mode)}}},
	}

	resp, err := models.GenerateContent(ctx, e.model, genai.Text(UserText(input)), cfg)
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}

func (e *Engine) fallback(logger zerolog.Logger, span trace.Span, start time.Time, input string, mode domain.Mode, reason string, cause error) *domain.EnrichedPrompt {
	metrics.RecordAnalysisFallback(reason)
	metrics.RecordStage(stageName, "fallback", time.Since(start).Seconds())
	telemetry.AddFallbackAttribute(span, true)
	logger.Warn().Err(cause).Str("reason", reason).Msg("analysis degraded to template")
	return Fallback(input, mode)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range c.Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
