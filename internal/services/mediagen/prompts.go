package mediagen

import (
	"fmt"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

// WeightedPrompt is one steering prompt for a music session.
type WeightedPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

var atmospheres = []struct {
	keywords []string
	text     string
}{
	{[]string{"neo-tokyo", "cyberpunk", "corporate", "neural", "zaibatsus", "metropolis", "neon"}, "Cyberpunk synthwave atmosphere with electronic beats"},
	{[]string{"detective", "noir", "investigation", "mystery", "rain-soaked"}, "Film noir detective atmosphere with jazz undertones"},
	{[]string{"forest"}, "Mystical forest ambience"},
	{[]string{"dungeon", "cave"}, "Dark atmospheric cave ambience"},
	{[]string{"space", "adventure", "sci-fi"}, "Epic space adventure orchestral score"},
}

const defaultAtmosphere = "Atmospheric cinematic score"

var toneLayers = map[string]string{
	"mysterious": "Ethereal mystery with subtle tension",
	"tense":      "Building tension with electronic undertones",
	"peaceful":   "Serene meditation",
	"dramatic":   "Epic orchestral drama with crescendo",
	"action":     "Intense action sequence with driving rhythms",
	"cyberpunk":  "Dark synthwave with neon atmosphere",
	"detective":  "Film noir suspense with jazz elements",
	"noir":       "Classic detective noir with saxophone",
	"eerie":      "Haunting atmospheric dread",
	"scary":      "Ominous supernatural horror",
	"futuristic": "Sci-fi electronic soundscape",
	"urban":      "City ambience with electronic textures",
	"corporate":  "Cold corporate electronic atmosphere",
}

// MusicPrompts picks a base atmosphere from the scene text (first matching
// group wins) and layers the tone on top when it is a known one.
func MusicPrompts(sceneContext, tone string) []WeightedPrompt {
	lower := strings.ToLower(sceneContext)

	base := defaultAtmosphere
	for _, a := range atmospheres {
		if containsAny(lower, a.keywords) {
			base = a.text
			break
		}
	}

	prompts := []WeightedPrompt{{Text: base, Weight: 1.0}}
	if layer, ok := toneLayers[strings.ToLower(strings.TrimSpace(tone))]; ok {
		prompts = append(prompts, WeightedPrompt{Text: layer, Weight: 0.8})
	}
	return prompts
}

// ImagePrompt appends the adventure's visual style to a scene prompt.
func ImagePrompt(prompt string, style media.StyleContext) string {
	return fmt.Sprintf(`%s

Style: %s
Color palette: %s
Artistic direction: Cinematic fantasy realism, dramatic lighting, professional game cinematography, consistent visual DNA, 4K quality`,
		strings.TrimSpace(prompt), style.ArtStyle, style.ColorPalette)
}

// VideoPrompt appends camera direction to a video prompt.
func VideoPrompt(prompt string, style media.StyleContext, seeded bool) string {
	direction := "Smooth camera movement, atmospheric particles, dynamic lighting transitions, cinematic sequence, professional film quality, maintains visual consistency"
	if !seeded {
		direction = "Smooth camera movement, atmospheric lighting, dynamic scene transitions, cinematic sequence, professional film quality"
	}
	return fmt.Sprintf("%s\n\nStyle: %s, %s\nCinematic direction: %s",
		strings.TrimSpace(prompt), style.ArtStyle, style.ColorPalette, direction)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
