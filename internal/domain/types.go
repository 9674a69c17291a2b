package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the upper bound on a raw prompt, counted in characters.
const MaxPromptLength = 500

// Mode is one of the four stylistic presets that parameterize Stage A.
type Mode string

const (
	ModeSport    Mode = "sport"
	ModeEthereal Mode = "ethereal"
	ModeClay     Mode = "clay"
	ModeOrganic  Mode = "organic"
)

// Modes returns the known modes in display order.
func Modes() []Mode {
	return []Mode{ModeSport, ModeEthereal, ModeClay, ModeOrganic}
}

func (m Mode) Valid() bool {
	switch m {
	case ModeSport, ModeEthereal, ModeClay, ModeOrganic:
		return true
	}
	return false
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
	}
	return m, nil
}

// OutputKind selects the Stage B capability.
type OutputKind string

const (
	OutputImage OutputKind = "image"
	OutputVideo OutputKind = "video"
)

func (k OutputKind) Valid() bool {
	return k == OutputImage || k == OutputVideo
}

// CreditCost is a pure function of the output kind.
func (k OutputKind) CreditCost() int {
	if k == OutputVideo {
		return 10
	}
	return 1
}

func ParseOutputKind(s string) (OutputKind, error) {
	k := OutputKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown output type %q", ErrInvalidInput, s)
	}
	return k, nil
}

type GenerationRequest struct {
	RawPrompt  string     `json:"prompt"`
	Mode       Mode       `json:"mode"`
	OutputKind OutputKind `json:"outputType"`
}

// Validate checks the request shape without touching the network.
func (r GenerationRequest) Validate() error {
	prompt := strings.TrimSpace(r.RawPrompt)
	if prompt == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return fmt.Errorf("%w: prompt is %d characters, limit is %d", ErrInvalidInput, n, MaxPromptLength)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, r.Mode)
	}
	if !r.OutputKind.Valid() {
		return fmt.Errorf("%w: unknown output type %q", ErrInvalidInput, r.OutputKind)
	}
	return nil
}

// EnrichedPrompt is the Stage A output. It is consumed only by Stage B.
type EnrichedPrompt struct {
	DetectedVibe   string `json:"detectedVibe"`
	DirectorScript string `json:"directorScript"`
	EnhancedPrompt string `json:"enhancedPrompt"`
	Mode           Mode   `json:"mode"`
	Fallback       bool   `json:"fallback,omitempty"`
}

type GenerationResult struct {
	OutputKind    OutputKind `json:"outputType"`
	ResultLocator string     `json:"resultUrl"`
	Model         string     `json:"model"`
	CreditCost    int        `json:"creditCost"`
}
