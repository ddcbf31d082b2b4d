package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

func establishingPrompt(location, mood, details string, characters []string, style media.StyleContext) string {
	cast := "Epic environment focus"
	if len(characters) > 0 {
		cast = strings.Join(characters, ", ")
	}
	return fmt.Sprintf(`Establishing shot: %s with %s atmosphere. %s
Characters: %s
Style: %s, %s
Cinematic establishing shot, wide angle, environmental storytelling, 4K quality`,
		location, mood, details, cast, style.ArtStyle, style.ColorPalette)
}

func portraitPrompt(req PortraitRequest, style media.StyleContext) string {
	return fmt.Sprintf(`Character portrait: %s, %s personality.
Context: %s. Current emotion: %s
Style: %s, %s
High-quality character design, expressive features, consistent visual DNA,
fantasy character art, professional game character design`,
		req.Name, req.Personality, req.Context, req.Emotion, style.ArtStyle, style.ColorPalette)
}

func momentImagePrompt(action, context, artStyle string) string {
	return fmt.Sprintf("Result: %s in %s, %s, dramatic moment", action, context, artStyle)
}

func memoryPrompt(m story.MemoryOutcome, artStyle string) string {
	return fmt.Sprintf(`Memory fragment: %s - %s. Category: %s
Style: %s, ethereal memory visualization,
story timeline entry, journal illustration, memory essence capture`,
		m.Key, m.Value, m.Category, artStyle)
}

func climaxVideoPrompt(finalChoice, scene, artStyle string) string {
	return fmt.Sprintf(`EPIC FINALE: %s
Ultimate climactic confrontation in %s
Cinematic masterpiece, dramatic crescendo, ultimate resolution,
%s with maximum dramatic impact`, finalChoice, scene, artStyle)
}

// completionMessage summarises a concluded adventure.
func completionMessage(st story.StatusSnapshot, counts media.Counts, video media.Result) string {
	videoStatus := "epic_video_generated"
	if !video.OK() {
		videoStatus = "epic_video_" + string(video.Status)
	}
	return fmt.Sprintf(`EPIC STORY COMPLETE!

Your adventure has reached its cinematic conclusion! Through %d dramatic events, you've shaped a unique story that will be remembered.

Your journey:
- Characters met: %d
- Major choices made: %d
- Media generated: %d images, %d videos, %d music tracks
- Finale video: %s`,
		st.StoryEvents, len(st.Characters), st.ChoicesMade,
		counts.Images, counts.Videos, counts.Music, videoStatus)
}
