package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/felipepmaragno/velvet-protocol/internal/auth"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/session"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()

	logging.FromContext(r.Context()).Info().
		Str("session_id", sess.ID).
		Msg("session created")

	writeJSON(w, http.StatusCreated, sess.Orchestrator.Status())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Orchestrator.Status())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, domain.ErrorResponse{Error: "Session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminUnlock(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req domain.AdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if h.admin == nil {
		writeError(w, http.StatusForbidden, domain.ErrorResponse{Error: "Admin unlock is disabled"})
		return
	}

	if err := h.admin.Verify(req.Password); err != nil {
		if errors.Is(err, auth.ErrAdminDisabled) {
			writeError(w, http.StatusForbidden, domain.ErrorResponse{Error: "Admin unlock is disabled"})
			return
		}
		logger.Warn().Str("session_id", sess.ID).Msg("admin unlock rejected")
		writeError(w, http.StatusForbidden, domain.ErrorResponse{Error: "Incorrect password"})
		return
	}

	sess.Orchestrator.GrantUnlimited()
	logger.Info().Str("session_id", sess.ID).Msg("admin unlock granted")

	writeJSON(w, http.StatusOK, sess.Orchestrator.Status())
}

// handleRun executes the full two-stage pipeline for one session. Guard
// rejections never reach the upstream models.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var body domain.RunRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorResponse{
			Error: "Invalid request body",
			Kind:  domain.KindInvalidInput,
		})
		return
	}

	req := domain.GenerationRequest{
		RawPrompt:  body.Prompt,
		Mode:       domain.Mode(strings.ToLower(strings.TrimSpace(body.Mode))),
		OutputKind: domain.OutputImage,
	}
	if body.OutputType != "" {
		req.OutputKind = domain.OutputKind(strings.ToLower(strings.TrimSpace(body.OutputType)))
	}

	res, err := sess.Orchestrator.Run(ctx, req)
	if err != nil {
		writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.RunResponse{
		Success: true,
		Result:  res,
		Credits: sess.Orchestrator.Status().Credits,
	})
}

func writeRunError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	body := domain.ErrorResponse{
		Error:   string(kind),
		Message: domain.UserMessage(err),
		Kind:    kind,
	}

	var tooSoon *domain.TooSoonError
	var rl *domain.RateLimitedError
	switch {
	case errors.As(err, &tooSoon):
		body.RetryAfter = tooSoon.WaitSeconds()
	case errors.As(err, &rl):
		body.RateLimit = true
		body.RetryAfter = rl.RetryAfterSeconds()
	}

	writeError(w, statusFor(kind), body)
}

func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, domain.ErrorResponse{Error: "Session not found"})
		return nil, false
	}
	return sess, true
}
