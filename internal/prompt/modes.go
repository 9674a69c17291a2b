package prompt

import "github.com/felipepmaragno/velvet-protocol/internal/domain"

// Tokens are the cinematic constraints a mode injects into the director script.
type Tokens struct {
	Lighting string
	Texture  string
	Camera   string
	Vibe     string
}

var modeTokens = map[domain.Mode]Tokens{
	domain.ModeSport: {
		Lighting: "Golden hour flair, deep athletic shadows, vertical flash, harsh sunlight hits",
		Texture:  "Micro-water droplets on skin, sweat-drenched lycra, aerodynamic tension",
		Camera:   "High shutter speed (1/1000s), motion blur background, wide dynamic range",
		Vibe:     "high energy, athletic, dynamic movement",
	},
	domain.ModeEthereal: {
		Lighting: "Diffused atmospheric light, low contrast, soft pastel gradients, time suspension",
		Texture:  "Translucent surfaces, negative space, organic flow",
		Camera:   "Wide angle, analog film grain, floating dust particles, low grain",
		Vibe:     "wellness, calm, natural, serene",
	},
	domain.ModeClay: {
		Lighting: "Softbox studio lighting, gentle rim light, rounded shadows",
		Texture:  "Handcrafted ceramic texture, visible fingerprint marks, imperfect sculpting",
		Camera:   "Macro lens, shallow depth of field (tilt-shift effect)",
		Vibe:     "playful, tech, saas, modern, minimalist",
	},
	domain.ModeOrganic: {
		Lighting: "Frontal soft light, minimal shadows, high-key editorial",
		Texture:  "Dense piling, no visible gaps, viscous liquid flow, shell flakes, matte pastel",
		Camera:   "Top-down (Flat lay) or 45-degree macro, tack sharp focus",
		Vibe:     "food, product, luxurious, gourmet",
	},
}

// TokensFor returns the tokens of mode. ok is false for an unknown mode.
func TokensFor(mode domain.Mode) (Tokens, bool) {
	t, ok := modeTokens[mode]
	return t, ok
}
