package choice

import (
	"fmt"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/pkg/chat"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

const narratorSystemPrompt = `You are the narrator of an interactive cinematic adventure. The player makes exactly five choices before the finale. Stay in the second person, keep the tone of the current scene, and never mention that you are generating text.`

const choiceInstructions = `Generate exactly 3 choices in this format:
A: [specific action for this situation]
B: [different specific action for this situation]
C: [third specific action for this situation]

Make each choice:
- Specific to the current scene and situation
- Offer different narrative paths and consequences
- Match the story's tone and setting`

const resolutionInstructions = `Generate a dramatic narrative outcome showing:
1. What immediately happens as a result of this choice
2. How the situation evolves
3. What new challenges or opportunities arise

Write 2-3 sentences of compelling narrative that shows the consequences of this choice.
Make it specific to the current context and choice made.`

// ChoiceMessages builds the prompt asking for three labeled options.
func ChoiceMessages(cc story.ChoiceContext) []chat.ChatMessage {
	characters := "None"
	if len(cc.Characters) > 0 {
		characters = strings.Join(cc.Characters, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SITUATION: %s\n", cc.Situation)
	fmt.Fprintf(&b, "SCENE: %s\n", cc.Scene)
	fmt.Fprintf(&b, "MOOD: %s\n", cc.Mood)
	fmt.Fprintf(&b, "CHARACTERS PRESENT: %s\n", characters)
	fmt.Fprintf(&b, "STORY PROGRESS: %d events completed\n", cc.Events)
	fmt.Fprintf(&b, "DANGER LEVEL: %d/10\n", cc.DangerLevel)
	fmt.Fprintf(&b, "USER CHOICES MADE: %d/%d\n\n", cc.ChoicesMade, cc.TotalChoices)
	b.WriteString(choiceInstructions)

	return []chat.ChatMessage{
		chat.System(narratorSystemPrompt),
		chat.User(b.String()),
	}
}

// ResolutionMessages builds the prompt asking for the consequence of a
// choice.
func ResolutionMessages(rc story.ResolutionContext) []chat.ChatMessage {
	history := "Beginning of adventure"
	if len(rc.RecentHistory) > 0 {
		lines := make([]string, 0, len(rc.RecentHistory))
		for _, e := range rc.RecentHistory {
			lines = append(lines, "- "+e.Summary())
		}
		history = "\n" + strings.Join(lines, "\n")
	}

	chosen := rc.Option
	if rc.Chosen != rc.Option {
		chosen = fmt.Sprintf("%s: %s", rc.Chosen, rc.Option)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT SITUATION: You are in %s\n", rc.Scene)
	fmt.Fprintf(&b, "STORY PROGRESS: %d/%d choices made so far\n", rc.ChoicesMade, rc.TotalChoices)
	fmt.Fprintf(&b, "DANGER LEVEL: %d/10\n", rc.DangerLevel)
	fmt.Fprintf(&b, "RECENT HISTORY: %s\n\n", history)
	fmt.Fprintf(&b, "USER CHOSE OPTION: %s\n\n", chosen)
	b.WriteString(resolutionInstructions)

	return []chat.ChatMessage{
		chat.System(narratorSystemPrompt),
		chat.User(b.String()),
	}
}
