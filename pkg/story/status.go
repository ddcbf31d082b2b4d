package story

import "github.com/Abdullah0x0/dreamdirector/pkg/media"

// StatusSnapshot is a read-only projection of a State.
type StatusSnapshot struct {
	AdventureID      string       `json:"adventure_id,omitempty"`
	Title            string       `json:"title,omitempty"`
	CurrentScene     string       `json:"current_scene"`
	CurrentMood      string       `json:"current_mood"`
	Characters       []string     `json:"characters_present"`
	StoryEvents      int          `json:"story_events"`
	DangerLevel      int          `json:"danger_level"`
	ChoicesMade      int          `json:"user_choices_made"`
	ChoicesRemaining int          `json:"choices_remaining"`
	GeneratedMedia   media.Counts `json:"generated_media"`
	WorldMemories    int          `json:"world_memories"`
	Stage            string       `json:"story_stage"`
	Phase            Stage        `json:"phase"`
	Status           string       `json:"status"`
}

// StageLabel derives the coarse stage from the number of history events.
func StageLabel(events int) string {
	switch {
	case events < 3:
		return "beginning"
	case events < 8:
		return "middle"
	default:
		return "climax"
	}
}

// Status snapshots st. Slices are copied.
func (s *State) Status() StatusSnapshot {
	snap := StatusSnapshot{
		CurrentScene:     s.CurrentScene,
		CurrentMood:      s.CurrentMood,
		Characters:       append([]string{}, s.Characters...),
		StoryEvents:      len(s.History),
		DangerLevel:      s.DangerLevel,
		ChoicesMade:      s.ChoicesMade,
		ChoicesRemaining: max(0, s.TotalChoices-s.ChoicesMade),
		GeneratedMedia:   s.MediaCounts(),
		WorldMemories:    s.MemoryCount(),
		Stage:            StageLabel(len(s.History)),
		Phase:            s.Stage,
	}

	switch s.Stage {
	case StageUninitialized:
		snap.Status = "no_story"
	case StageConcluded:
		snap.Status = "story_complete"
	default:
		snap.Status = "story_active"
	}
	if s.Started() {
		snap.AdventureID = s.ID.String()
		snap.Title = s.Title
	}
	return snap
}
