package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"sport", ModeSport, false},
		{" Ethereal ", ModeEthereal, false},
		{"CLAY", ModeClay, false},
		{"organic", ModeOrganic, false},
		{"noir", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutputKind(t *testing.T) {
	k, err := ParseOutputKind("Video")
	require.NoError(t, err)
	assert.Equal(t, OutputVideo, k)

	_, err = ParseOutputKind("audio")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreditCost(t *testing.T) {
	assert.Equal(t, 1, OutputImage.CreditCost())
	assert.Equal(t, 10, OutputVideo.CreditCost())
}

func TestGenerationRequest_Validate(t *testing.T) {
	valid := GenerationRequest{RawPrompt: "a runner at dawn", Mode: ModeSport, OutputKind: OutputImage}

	tests := []struct {
		name    string
		mutate  func(r *GenerationRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *GenerationRequest) {}},
		{name: "blank prompt", mutate: func(r *GenerationRequest) { r.RawPrompt = " \t\n" }, wantErr: true},
		{name: "max length", mutate: func(r *GenerationRequest) { r.RawPrompt = strings.Repeat("a", MaxPromptLength) }},
		{name: "too long", mutate: func(r *GenerationRequest) { r.RawPrompt = strings.Repeat("a", MaxPromptLength+1) }, wantErr: true},
		{name: "multibyte counted as characters", mutate: func(r *GenerationRequest) { r.RawPrompt = strings.Repeat("é", MaxPromptLength) }},
		{name: "unknown mode", mutate: func(r *GenerationRequest) { r.Mode = "noir" }, wantErr: true},
		{name: "unknown output", mutate: func(r *GenerationRequest) { r.OutputKind = "audio" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"too soon", &TooSoonError{Wait: time.Second}, KindTooSoon},
		{"in progress", ErrAlreadyInProgress, KindAlreadyInProgress},
		{"credit", &InsufficientCreditError{Required: 10, Available: 3}, KindInsufficientCredit},
		{"analysis wraps config", &AnalysisError{Message: "x", Err: &ConfigError{Message: "y"}}, KindAnalysisFailed},
		{"config", &ConfigError{Message: "y"}, KindConfiguration},
		{"rate limited", &RateLimitedError{RetryAfter: DefaultRetryAfter, Message: "429"}, KindRateLimited},
		{"empty payload", ErrEmptyPayload, KindEmptyPayload},
		{"upstream", &UpstreamError{Message: "boom"}, KindUpstreamFailure},
		{"unknown", errors.New("boom"), KindUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))

	assert.Equal(t, "Please wait 2 second(s) before generating again.",
		UserMessage(&TooSoonError{Wait: 1500 * time.Millisecond}))

	msg := UserMessage(&InsufficientCreditError{Required: 10, Available: 3})
	assert.Contains(t, msg, "Required: 10 credits, available: 3 credits.")
	assert.Contains(t, msg, "Try generating an image")

	msg = UserMessage(&InsufficientCreditError{Required: 1, Available: 0})
	assert.NotContains(t, msg, "Try generating an image")

	msg = UserMessage(&RateLimitedError{RetryAfter: DefaultRetryAfter, Message: "Quota exceeded"})
	assert.Contains(t, msg, "60 seconds")
	assert.Contains(t, msg, "Quota exceeded")

	assert.Contains(t, UserMessage(ErrAlreadyInProgress), "already in progress")
}
