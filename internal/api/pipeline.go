package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
)

// handleAnalyze runs Stage A on its own. The body is {prompt, mode}.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req domain.AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.Mode) == "" {
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{Error: "Missing prompt or mode"})
		return
	}

	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Missing prompt or mode",
			Message: err.Error(),
			Kind:    domain.KindInvalidInput,
		})
		return
	}

	ep, err := h.analyzer.Analyze(ctx, req.Prompt, mode)
	if err != nil {
		kind := domain.KindOf(err)
		status := http.StatusInternalServerError
		if kind == domain.KindInvalidInput {
			status = http.StatusBadRequest
		}
		logger.Error().Err(err).Str("mode", string(mode)).Msg("analysis failed")
		writeError(w, status, domain.ErrorResponse{
			Error:   "Analysis failed",
			Message: rawMessage(err),
			Kind:    kind,
		})
		return
	}

	writeJSON(w, http.StatusOK, domain.AnalyzeResponse{Success: true, Analysis: ep})
}

// handleGenerate runs Stage B on an already enhanced prompt. The output type
// defaults to image.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req domain.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.EnhancedPrompt) == "" {
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{Error: "Missing enhancedPrompt"})
		return
	}

	kind := domain.OutputImage
	if req.OutputType != "" {
		k, err := domain.ParseOutputKind(req.OutputType)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrorResponse{
				Error:   "Invalid outputType",
				Message: err.Error(),
				Kind:    domain.KindInvalidInput,
			})
			return
		}
		kind = k
	}

	res, err := h.generator.Generate(ctx, req.EnhancedPrompt, kind)
	if err != nil {
		logger.Error().Err(err).Str("output_type", string(kind)).Msg("generation failed")
		writeGenerateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.GenerateResponse{
		Success:    true,
		OutputType: res.OutputKind,
		ResultURL:  res.ResultLocator,
		Model:      res.Model,
		CreditCost: res.CreditCost,
	})
}

func writeGenerateError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)

	switch kind {
	case domain.KindInvalidInput:
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{
			Error:   "Missing enhancedPrompt",
			Message: err.Error(),
			Kind:    kind,
		})
	case domain.KindRateLimited:
		retry := int(domain.DefaultRetryAfter.Seconds())
		var rl *domain.RateLimitedError
		if errors.As(err, &rl) {
			retry = rl.RetryAfterSeconds()
		}
		writeError(w, http.StatusTooManyRequests, domain.ErrorResponse{
			Error:      "Rate limit exceeded",
			Message:    rawMessage(err),
			Kind:       kind,
			RateLimit:  true,
			RetryAfter: retry,
		})
	case domain.KindConfiguration:
		writeError(w, http.StatusInternalServerError, domain.ErrorResponse{
			Error:   "Server configuration error",
			Message: rawMessage(err),
			Kind:    kind,
		})
	default:
		writeError(w, http.StatusInternalServerError, domain.ErrorResponse{
			Error:   "Generation failed",
			Message: rawMessage(err),
			Kind:    kind,
		})
	}
}
