package mediagen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

func TestMusicPrompts(t *testing.T) {
	tests := []struct {
		name  string
		scene string
		tone  string
		base  string
		layer string
	}{
		{"cyberpunk scene", "Neo-Tokyo 2087, rain-soaked streets", "tense", "Cyberpunk synthwave atmosphere with electronic beats", "Building tension with electronic undertones"},
		{"noir scene", "A rain-soaked alley", "mysterious", "Film noir detective atmosphere with jazz undertones", "Ethereal mystery with subtle tension"},
		{"forest scene", "The Whispering Forest", "peaceful", "Mystical forest ambience", "Serene meditation"},
		{"cave scene", "A crystal cave", "dramatic", "Dark atmospheric cave ambience", "Epic orchestral drama with crescendo"},
		{"space scene", "Story continues in deep space", "action", "Epic space adventure orchestral score", "Intense action sequence with driving rhythms"},
		{"unknown tone", "A quiet village", "whimsical", "Atmospheric cinematic score", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompts := MusicPrompts(tt.scene, tt.tone)
			require.NotEmpty(t, prompts)
			assert.Equal(t, tt.base, prompts[0].Text)
			assert.Equal(t, 1.0, prompts[0].Weight)
			if tt.layer == "" {
				assert.Len(t, prompts, 1)
				return
			}
			require.Len(t, prompts, 2)
			assert.Equal(t, tt.layer, prompts[1].Text)
			assert.Equal(t, 0.8, prompts[1].Weight)
		})
	}
}

func TestImagePrompt(t *testing.T) {
	p := ImagePrompt("Establishing shot: a neon market", media.StyleContext{ArtStyle: "cyberpunk noir", ColorPalette: "neon blues"})
	assert.Contains(t, p, "Establishing shot: a neon market")
	assert.Contains(t, p, "Style: cyberpunk noir")
	assert.Contains(t, p, "Color palette: neon blues")
}

func TestVideoPrompt(t *testing.T) {
	style := media.StyleContext{ArtStyle: "epic", ColorPalette: "gold"}
	assert.Contains(t, VideoPrompt("EPIC FINALE", style, true), "maintains visual consistency")
	assert.NotContains(t, VideoPrompt("EPIC FINALE", style, false), "maintains visual consistency")
}
