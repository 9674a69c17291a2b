// Package orchestrator drives one generation through both pipeline stages.
// Each Orchestrator owns the rate state and credit ledger of a single session,
// so sessions never observe each other.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/felipepmaragno/velvet-protocol/internal/credits"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/telemetry"
)

// MinInterval is the minimum spacing between the starts of two runs.
const MinInterval = 2 * time.Second

// Analyzer is Stage A.
type Analyzer interface {
	Analyze(ctx context.Context, rawPrompt string, mode domain.Mode) (*domain.EnrichedPrompt, error)
}

// Generator is Stage B.
type Generator interface {
	Generate(ctx context.Context, enhancedPrompt string, kind domain.OutputKind) (*domain.GenerationResult, error)
}

type RateState struct {
	LastRequest time.Time
	InFlight    bool
}

type Status struct {
	SessionID  string                   `json:"sessionId"`
	Credits    int                      `json:"credits"`
	Unlimited  bool                     `json:"unlimited"`
	InFlight   bool                     `json:"inFlight"`
	LastResult *domain.GenerationResult `json:"lastResult,omitempty"`
}

type Orchestrator struct {
	analyzer  Analyzer
	generator Generator
	ledger    *credits.Ledger
	sessionID string
	now       func() time.Time

	mu         sync.Mutex
	state      RateState
	lastResult *domain.GenerationResult
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

func New(analyzer Analyzer, generator Generator, ledger *credits.Ledger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:  analyzer,
		generator: generator,
		ledger:    ledger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates req, applies the local guards, then calls Stage A and Stage B
// in order. Credits are debited only when Stage B returns a result.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.Run")
	defer span.End()
	telemetry.AddRunAttributes(span, o.sessionID, string(req.Mode), string(req.OutputKind))

	logger := logging.FromContext(ctx).With().
		Str("session_id", o.sessionID).
		Str("mode", string(req.Mode)).
		Str("output_type", string(req.OutputKind)).
		Logger()
	ctx = logger.WithContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, o.reject(logger, req, err)
	}

	cost := credits.Cost(req.OutputKind)
	if err := o.acquire(cost); err != nil {
		return nil, o.reject(logger, req, err)
	}
	defer o.release()

	logger.Info().Int("cost", cost).Msg("run started")
	start := time.Now()

	res, err := o.pipeline(ctx, logger, req)
	if err == nil {
		err = o.commit(res, cost)
	}
	if err != nil {
		kind := domain.KindOf(err)
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordOutcome(string(kind), string(req.OutputKind))
		logger.Error().Err(err).Str("kind", string(kind)).Dur("duration", time.Since(start)).Msg("run failed")
		return nil, err
	}

	metrics.RecordOutcome("ok", string(req.OutputKind))
	metrics.RecordCreditsDebited(string(req.OutputKind), cost)
	logger.Info().
		Str("model", res.Model).
		Int("credit_cost", cost).
		Dur("duration", time.Since(start)).
		Msg("run completed")

	return res, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, logger zerolog.Logger, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	logger.Info().Str("stage", "analysis").Msg("stage started")
	ep, err := o.analyzer.Analyze(ctx, strings.TrimSpace(req.RawPrompt), req.Mode)
	if err != nil {
		return nil, &domain.AnalysisError{Message: err.Error(), Err: err}
	}
	if ep == nil || strings.TrimSpace(ep.EnhancedPrompt) == "" {
		return nil, &domain.AnalysisError{Message: "analysis returned no enhanced prompt"}
	}
	logger.Info().Str("stage", "analysis").Bool("fallback", ep.Fallback).Msg("stage finished")

	logger.Info().Str("stage", "generation").Msg("stage started")
	res, err := o.generator.Generate(ctx, ep.EnhancedPrompt, req.OutputKind)
	if err != nil {
		return nil, err
	}
	if res == nil || res.ResultLocator == "" {
		return nil, fmt.Errorf("%w: generation returned no result locator", domain.ErrEmptyPayload)
	}
	logger.Info().Str("stage", "generation").Str("model", res.Model).Msg("stage finished")

	return res, nil
}

// acquire applies the guards in order and marks the run in flight.
func (o *Orchestrator) acquire(cost int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if !o.state.LastRequest.IsZero() {
		if elapsed := now.Sub(o.state.LastRequest); elapsed < MinInterval {
			return &domain.TooSoonError{Wait: MinInterval - elapsed}
		}
	}
	if o.state.InFlight {
		return domain.ErrAlreadyInProgress
	}
	if err := o.ledger.Check(cost); err != nil {
		return err
	}

	o.state.InFlight = true
	o.state.LastRequest = now
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.state.InFlight = false
	o.mu.Unlock()
}

// commit debits and publishes under one lock so Status never sees one
// without the other.
func (o *Orchestrator) commit(res *domain.GenerationResult, cost int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ledger.Debit(cost); err != nil {
		return err
	}
	o.lastResult = res
	return nil
}

func (o *Orchestrator) reject(logger zerolog.Logger, req domain.GenerationRequest, err error) error {
	kind := domain.KindOf(err)
	metrics.RecordGuardRejection(string(kind))
	metrics.RecordOutcome(string(kind), string(req.OutputKind))
	logger.Warn().Err(err).Str("kind", string(kind)).Msg("run rejected")
	return err
}

func (o *Orchestrator) GrantUnlimited() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledger.GrantUnlimited()
}

func (o *Orchestrator) State() RateState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := o.ledger.Snapshot()
	return Status{
		SessionID:  o.sessionID,
		Credits:    snap.Credits,
		Unlimited:  snap.Unlimited,
		InFlight:   o.state.InFlight,
		LastResult: o.lastResult,
	}
}
