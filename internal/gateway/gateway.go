// Package gateway implements Stage B: it sends the enriched prompt to the
// image or video model, absorbs transient quota rejections on the image path,
// and normalizes the returned payload into a result locator.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/notifications"
	"github.com/felipepmaragno/velvet-protocol/internal/telemetry"
	"github.com/felipepmaragno/velvet-protocol/internal/vertex"
)

const (
	DefaultImageModel = "imagen-3.0-generate-001"
	DefaultVideoModel = "veo-3.1"

	videoWrapper = "Generate a cinematic video: "
	pngDataURI   = "data:image/png;base64,"

	stageName = "generation"
)

// RetryPolicy bounds the image-path retry loop. Waits double from BaseDelay
// with no jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay is the wait after the failure of attempt index i, counting from 0.
func (p RetryPolicy) Delay(i int) time.Duration {
	return p.BaseDelay << i
}

type Options struct {
	ImageModel string
	VideoModel string
	Retry      RetryPolicy
	Notifier   notifications.Notifier
}

type Gateway struct {
	provider   vertex.ModelsProvider
	imageModel string
	videoModel string
	retry      RetryPolicy
	notifier   notifications.Notifier
}

func New(provider vertex.ModelsProvider, opts Options) *Gateway {
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}
	if opts.VideoModel == "" {
		opts.VideoModel = DefaultVideoModel
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	return &Gateway{
		provider:   provider,
		imageModel: opts.ImageModel,
		videoModel: opts.VideoModel,
		retry:      opts.Retry,
		notifier:   opts.Notifier,
	}
}

// Generate runs Stage B for kind. Errors are ConfigError, RateLimitedError,
// an ErrEmptyPayload wrap or UpstreamError, each carrying the upstream message.
func (g *Gateway) Generate(ctx context.Context, enhancedPrompt string, kind domain.OutputKind) (*domain.GenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.Generate")
	defer span.End()

	logger := logging.FromContext(ctx).With().Str("stage", stageName).Str("output_type", string(kind)).Logger()
	start := time.Now()

	res, err := g.generate(ctx, logger, enhancedPrompt, kind)
	if err != nil {
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordStage(stageName, string(domain.KindOf(err)), time.Since(start).Seconds())
		logger.Error().Err(err).Str("kind", string(domain.KindOf(err))).Msg("generation failed")
		return nil, err
	}

	telemetry.AddModelAttribute(span, res.Model)
	metrics.RecordStage(stageName, "ok", time.Since(start).Seconds())
	logger.Info().
		Str("model", res.Model).
		Int("credit_cost", res.CreditCost).
		Dur("duration", time.Since(start)).
		Msg("generation completed")

	return res, nil
}

func (g *Gateway) generate(ctx context.Context, logger zerolog.Logger, enhancedPrompt string, kind domain.OutputKind) (*domain.GenerationResult, error) {
	prompt := strings.TrimSpace(enhancedPrompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: enhancedPrompt is empty", domain.ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown output type %q", domain.ErrInvalidInput, kind)
	}

	models, err := g.provider.Models(ctx)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.OutputVideo:
		return g.generateVideo(ctx, logger, models, prompt)
	default:
		return g.generateImage(ctx, logger, models, prompt)
	}
}

// generateVideo makes exactly one call. Quota rejections are classified but
// not retried on this path.
func (g *Gateway) generateVideo(ctx context.Context, logger zerolog.Logger, models vertex.Models, prompt string) (*domain.GenerationResult, error) {
	logger.Info().Str("model", g.videoModel).Msg("generation started")
	metrics.RecordGenerationAttempt(string(domain.OutputVideo), g.videoModel)

	resp, err := models.GenerateContent(ctx, g.videoModel, genai.Text(videoWrapper+prompt), nil)
	if err != nil {
		return nil, classify(err)
	}

	locator, err := extractVideo(resp)
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		OutputKind:    domain.OutputVideo,
		ResultLocator: locator,
		Model:         g.videoModel,
		CreditCost:    domain.OutputVideo.CreditCost(),
	}, nil
}

func (g *Gateway) generateImage(ctx context.Context, logger zerolog.Logger, models vertex.Models, prompt string) (*domain.GenerationResult, error) {
	logger.Info().Str("model", g.imageModel).Msg("generation started")

	attempt := 0
	b := &backoff.ExponentialBackOff{
		InitialInterval:     g.retry.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         g.retry.Delay(g.retry.MaxAttempts),
	}

	resp, err := backoff.Retry(ctx, func() (*genai.GenerateContentResponse, error) {
		attempt++
		metrics.RecordGenerationAttempt(string(domain.OutputImage), g.imageModel)

		resp, err := models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), nil)
		if err == nil {
			return resp, nil
		}
		if !IsRateLimitError(err) {
			return nil, backoff.Permanent(err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", g.retry.MaxAttempts).Msg("upstream rate limited")
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			metrics.RecordRateLimitRetry(g.imageModel)
			logger.Info().Int("attempt", attempt).Dur("delay", d).Msg("retrying after backoff")
		}),
	)
	telemetry.AddAttemptAttribute(trace.SpanFromContext(ctx), attempt)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		classified := classify(err)
		if errors.Is(classified, domain.ErrRateLimited) && ctx.Err() == nil {
			g.notifyQuotaExhausted(ctx, logger, attempt, err)
		}
		return nil, classified
	}

	locator, err := extractImage(resp)
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		OutputKind:    domain.OutputImage,
		ResultLocator: locator,
		Model:         g.imageModel,
		CreditCost:    domain.OutputImage.CreditCost(),
	}, nil
}

func (g *Gateway) notifyQuotaExhausted(ctx context.Context, logger zerolog.Logger, attempts int, cause error) {
	if g.notifier == nil {
		return
	}
	err := g.notifier.Send(ctx, notifications.Notification{
		Type:    notifications.NotificationQuotaExhausted,
		Model:   g.imageModel,
		Message: cause.Error(),
		Data:    map[string]any{"attempts": attempts},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to send quota notification")
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &domain.UpstreamError{Message: err.Error(), Err: err}
	case IsRateLimitError(err):
		return &domain.RateLimitedError{RetryAfter: domain.DefaultRetryAfter, Message: err.Error(), Err: err}
	default:
		return &domain.UpstreamError{Message: err.Error(), Err: err}
	}
}

func firstPart(resp *genai.GenerateContentResponse) (*genai.Part, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", domain.ErrEmptyPayload)
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return nil, fmt.Errorf("%w: candidate has no content", domain.ErrEmptyPayload)
	}
	return c.Content.Parts[0], nil
}

func extractVideo(resp *genai.GenerateContentResponse) (string, error) {
	part, err := firstPart(resp)
	if err != nil {
		return "", err
	}
	if part.FileData != nil && part.FileData.FileURI != "" {
		return part.FileData.FileURI, nil
	}
	if locator := strings.TrimSpace(part.Text); locator != "" {
		return locator, nil
	}
	return "", fmt.Errorf("%w: no video locator in response", domain.ErrEmptyPayload)
}

// extractImage returns a data URI for inline bytes. Text payloads are accepted
// when they already are a data URI or URL, or are bare base64 whose decoded
// bytes sniff as an image.
func extractImage(resp *genai.GenerateContentResponse) (string, error) {
	part, err := firstPart(resp)
	if err != nil {
		return "", err
	}

	if part.InlineData != nil && len(part.InlineData.Data) > 0 {
		mime := part.InlineData.MIMEType
		if !strings.HasPrefix(mime, "image/") {
			return pngDataURI + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
	}

	text := strings.TrimSpace(part.Text)
	switch {
	case text == "":
		return "", fmt.Errorf("%w: no image data in response", domain.ErrEmptyPayload)
	case strings.HasPrefix(text, "data:"):
		return text, nil
	case isURL(text):
		return text, nil
	default:
		if mime, ok := sniffBase64Image(text); ok {
			return "data:" + mime + ";base64," + text, nil
		}
		return "", fmt.Errorf("%w: response text is not image data", domain.ErrEmptyPayload)
	}
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "gs") && u.Host != ""
}

// sniffBase64Image decodes s and reports the image MIME type of the bytes.
// Short words like "Done" decode cleanly but are not images.
func sniffBase64Image(s string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		return "", false
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", false
	}
	return mime, true
}
