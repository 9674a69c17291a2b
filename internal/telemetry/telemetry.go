// Package telemetry traces a pipeline run across its stages. The orchestrator
// opens the run span; analysis and generation open child spans and tag them
// with the model, cache, fallback and retry facts that explain the outcome.
package telemetry

import (
	"context"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/felipepmaragno/velvet-protocol"

// Span attribute keys.
const (
	attrSession    = attribute.Key("velvet.session_id")
	attrMode       = attribute.Key("velvet.mode")
	attrOutputType = attribute.Key("velvet.output_type")
	attrModel      = attribute.Key("velvet.model")
	attrAttempts   = attribute.Key("upstream.attempts")
	attrCacheHit   = attribute.Key("velvet.analysis.cache_hit")
	attrFallback   = attribute.Key("velvet.analysis.fallback")
	attrErrorKind  = attribute.Key("velvet.error")
)

type Config struct {
	ServiceName string
	Version     string
	Endpoint    string
	// SampleRatio is the share of new root traces that are recorded, within
	// [0, 1]; anything else records every trace. Requests that arrive with a
	// sampled parent are always kept.
	SampleRatio float64
}

// Init installs the global tracer provider and W3C propagation. Without an
// endpoint spans go nowhere and shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		log.Info().Msg("tracing disabled, OTLP_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
	)
	otel.SetTracerProvider(tp)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Float64("sample_ratio", sampleRatio(cfg.SampleRatio)).
		Msg("tracing enabled")

	return tp.Shutdown, nil
}

func sampleRatio(r float64) float64 {
	if r < 0 || r > 1 {
		return 1
	}
	return r
}

// StartSpan starts a span from the current global provider, so spans follow
// whatever Init or a test installed.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

func AddRunAttributes(span trace.Span, sessionID, mode, outputType string) {
	span.SetAttributes(
		attrSession.String(sessionID),
		attrMode.String(mode),
		attrOutputType.String(outputType),
	)
}

func AddModelAttribute(span trace.Span, model string) {
	span.SetAttributes(attrModel.String(model))
}

// AddAttemptAttribute records how many upstream calls a generation took,
// retries included.
func AddAttemptAttribute(span trace.Span, attempts int) {
	span.SetAttributes(attrAttempts.Int(attempts))
}

func AddCacheAttribute(span trace.Span, hit bool) {
	span.SetAttributes(attrCacheHit.Bool(hit))
}

func AddFallbackAttribute(span trace.Span, fallback bool) {
	span.SetAttributes(attrFallback.Bool(fallback))
}

// AddErrorAttribute marks the span failed and tags it with the error kind,
// the same label the run outcome metric carries.
func AddErrorAttribute(span trace.Span, err error) {
	if kind := domain.KindOf(err); kind != domain.KindNone {
		span.SetAttributes(attrErrorKind.String(string(kind)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx, or "" when the span
// is not part of a recorded trace.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
