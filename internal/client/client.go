// Package client calls a remote pipeline server. It implements the Analyzer
// and Generator contracts over POST /analyze and POST /generate so an
// Orchestrator can run locally against remote stages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/httputil"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httputil.DefaultClient()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Analyze(ctx context.Context, rawPrompt string, mode domain.Mode) (*domain.EnrichedPrompt, error) {
	var out domain.AnalyzeResponse
	err := c.post(ctx, "/analyze", domain.AnalyzeRequest{Prompt: rawPrompt, Mode: string(mode)}, &out)
	if err != nil {
		return nil, err
	}
	if out.Analysis == nil {
		return nil, &domain.AnalysisError{Message: "server returned no analysis"}
	}
	return out.Analysis, nil
}

func (c *Client) Generate(ctx context.Context, enhancedPrompt string, kind domain.OutputKind) (*domain.GenerationResult, error) {
	var out domain.GenerateResponse
	err := c.post(ctx, "/generate", domain.GenerateRequest{EnhancedPrompt: enhancedPrompt, OutputType: string(kind)}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.GenerationResult{
		OutputKind:    out.OutputType,
		ResultLocator: out.ResultURL,
		Model:         out.Model,
		CreditCost:    out.CreditCost,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.UpstreamError{Message: fmt.Sprintf("POST %s: %v", path, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Message: fmt.Sprintf("decode %s response", path), Err: err}
	}
	return nil
}

// decodeError rebuilds a typed error from a non-200 answer. The status code
// decides when the body carries no kind.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var e domain.ErrorResponse
	if err := json.Unmarshal(raw, &e); err != nil || e.Error == "" {
		e = domain.ErrorResponse{Error: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}

	msg := e.Message
	if msg == "" {
		msg = e.Error
	}

	kind := e.Kind
	if kind == domain.KindNone {
		kind = kindForStatus(resp.StatusCode, e.RateLimit)
	}

	switch kind {
	case domain.KindInvalidInput:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	case domain.KindRateLimited:
		retry := time.Duration(e.RetryAfter) * time.Second
		if retry <= 0 {
			retry = domain.DefaultRetryAfter
		}
		return &domain.RateLimitedError{RetryAfter: retry, Message: msg}
	case domain.KindConfiguration:
		return &domain.ConfigError{Message: msg}
	case domain.KindEmptyPayload:
		return fmt.Errorf("%w: %s", domain.ErrEmptyPayload, msg)
	case domain.KindAnalysisFailed:
		return &domain.AnalysisError{Message: msg}
	default:
		return &domain.UpstreamError{Message: msg, Err: errors.New(resp.Status)}
	}
}

func kindForStatus(status int, rateLimit bool) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests || rateLimit:
		return domain.KindRateLimited
	case status == http.StatusBadRequest:
		return domain.KindInvalidInput
	default:
		return domain.KindUpstreamFailure
	}
}
