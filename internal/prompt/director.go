package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

var errNoJSON = errors.New("no JSON object in model response")

var upper = cases.Upper(language.Und)

// SystemInstruction builds the "Velvet Director" instruction for mode.
func SystemInstruction(mode domain.Mode) string {
	t, _ := TokensFor(mode)

	var b strings.Builder
	b.WriteString(`You are the "Velvet Director" - an expert in high-end commercial photography.

Your mission: Transform user input into a cinematic "Director's Script" for product photography.

`)
	fmt.Fprintf(&b, "CURRENT MODE: %s\n", upper.String(string(mode)))
	fmt.Fprintf(&b, "MODE VIBE: %s\n\n", t.Vibe)
	b.WriteString("RULES:\n")
	b.WriteString("1. Analyze the user's input and extract the core product/subject.\n")
	b.WriteString("2. Detect the emotional vibe they're aiming for.\n")
	b.WriteString("3. Write a \"Director's Script\" - a detailed prompt that injects:\n")
	fmt.Fprintf(&b, "   - Lighting: %s\n", t.Lighting)
	fmt.Fprintf(&b, "   - Texture: %s\n", t.Texture)
	fmt.Fprintf(&b, "   - Camera: %s\n", t.Camera)
	b.WriteString("4. Output MUST be production-ready for Imagen-3.0.\n")
	b.WriteString("5. Keep it under 200 words but rich in cinematic detail.\n")
	b.WriteString("6. NO generic descriptions. Be specific, technical, and visually precise.\n\n")
	b.WriteString(`Format your response as JSON:
{
  "detectedVibe": "short description of the detected vibe",
  "directorScript": "the full director's script",
  "enhancedPrompt": "the final prompt to send to the image or video model"
}`)
	return b.String()
}

func UserText(rawPrompt string) string {
	return fmt.Sprintf("USER INPUT: \"%s\"", strings.TrimSpace(rawPrompt))
}

// Fallback is the fixed-template result used when the model cannot be
// reached or its answer cannot be parsed.
func Fallback(rawPrompt string, mode domain.Mode) *domain.EnrichedPrompt {
	t, _ := TokensFor(mode)
	input := strings.TrimSpace(rawPrompt)

	return &domain.EnrichedPrompt{
		DetectedVibe:   fmt.Sprintf("User wants to showcase their product with a %s aesthetic", mode),
		DirectorScript: fmt.Sprintf("Product photography in %s style", mode),
		EnhancedPrompt: fmt.Sprintf("%s. %s. %s. Shot with %s. Professional commercial photography, 8K resolution, award-winning composition.",
			input, t.Lighting, t.Texture, t.Camera),
		Mode:     mode,
		Fallback: true,
	}
}

type analysisPayload struct {
	DetectedVibe   string `json:"detectedVibe"`
	DirectorScript string `json:"directorScript"`
	EnhancedPrompt string `json:"enhancedPrompt"`
}

// ParseAnalysis pulls the JSON object out of free-form model text. Markdown
// fences are dropped and the span from the first '{' to the last '}' is decoded.
func ParseAnalysis(text string, mode domain.Mode) (*domain.EnrichedPrompt, error) {
	obj, err := extractObject(stripFences(text))
	if err != nil {
		return nil, err
	}

	var p analysisPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	p.EnhancedPrompt = strings.TrimSpace(p.EnhancedPrompt)
	if p.EnhancedPrompt == "" {
		return nil, errors.New("analysis has no enhancedPrompt")
	}

	return &domain.EnrichedPrompt{
		DetectedVibe:   strings.TrimSpace(p.DetectedVibe),
		DirectorScript: strings.TrimSpace(p.DirectorScript),
		EnhancedPrompt: p.EnhancedPrompt,
		Mode:           mode,
	}, nil
}

func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func extractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}
