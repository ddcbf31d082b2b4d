package story

import (
	"errors"
	"time"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/google/uuid"
)

var (
	ErrNotStarted         = errors.New("no adventure has been started")
	ErrOutOfSequence      = errors.New("operation called out of sequence")
	ErrInvalidChoiceIndex = errors.New("invalid choice index")
	ErrEmptyChoice        = errors.New("choice cannot be empty")
	ErrEmptyMemory        = errors.New("memory needs a key, value, and category")
)

// Stage is the position of an adventure in the narrative flow.
type Stage string

const (
	StageUninitialized Stage = "uninitialized"
	StageOpening       Stage = "opening"
	StageChoicePending Stage = "choice_pending"
	StageResolving     Stage = "resolving"
	StageClimax        Stage = "climax"
	StageConcluded     Stage = "concluded"
)

// EventKind labels a history entry.
type EventKind string

const (
	EventOpeningScene      EventKind = "opening_scene"
	EventCharacterPortrait EventKind = "character_portrait"
	EventChoiceMoment      EventKind = "choice_moment"
	EventChoiceResolution  EventKind = "choice_resolution"
	EventStoryContinuation EventKind = "story_continuation"
	EventStoryClimax       EventKind = "story_climax"
	EventMusicGenerated    EventKind = "music_generated"
)

// Event is one append-only history entry.
type Event struct {
	Kind      EventKind      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Summary renders the event as a single line for prompts and exports.
func (e Event) Summary() string {
	for _, key := range []string{"narrative", "situation", "scene", "asset"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			return string(e.Kind) + ": " + v
		}
	}
	return string(e.Kind)
}

// VisualStyle keeps recurring characters and locations visually consistent.
type VisualStyle struct {
	ArtStyle     string                `json:"art_style"`
	ColorPalette string                `json:"color_palette"`
	Characters   *media.ReferenceStore `json:"character_references"`
	Locations    *media.ReferenceStore `json:"location_references"`
}

// Context returns the style applied to media prompts.
func (v VisualStyle) Context() media.StyleContext {
	return media.StyleContext{ArtStyle: v.ArtStyle, ColorPalette: v.ColorPalette}
}

// ChoiceSet is the labeled A/B/C options offered at a choice moment.
// Missing labels are empty strings.
type ChoiceSet struct {
	Situation string `json:"situation"`
	A         string `json:"choice_a"`
	B         string `json:"choice_b"`
	C         string `json:"choice_c"`
}

// Options returns the three option texts in label order.
func (c ChoiceSet) Options() []string {
	return []string{c.A, c.B, c.C}
}

// Empty reports whether no label was filled.
func (c ChoiceSet) Empty() bool {
	return c.A == "" && c.B == "" && c.C == ""
}

// Complete reports whether every label was filled.
func (c ChoiceSet) Complete() bool {
	return c.A != "" && c.B != "" && c.C != ""
}

// Lookup returns the option text for a single-letter label.
func (c ChoiceSet) Lookup(label string) (string, bool) {
	switch label {
	case "A", "a":
		return c.A, c.A != ""
	case "B", "b":
		return c.B, c.B != ""
	case "C", "c":
		return c.C, c.C != ""
	}
	return "", false
}

// Memory is one piece of world knowledge.
type Memory struct {
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// State is one adventure. It is not safe for concurrent use; the owner
// serialises every mutation.
type State struct {
	ID               uuid.UUID
	Request          string
	ScenarioKey      string
	Title            string
	Hook             string
	CurrentScene     string
	CurrentMood      string
	DangerLevel      int
	ChoicesMade      int
	TotalChoices     int
	Characters       []string
	History          []Event
	Visual           VisualStyle
	Budget           *media.Budget
	Stage            Stage
	Images           []media.AssetRef
	Videos           []media.AssetRef
	Music            []media.AssetRef
	MusicThemes      []string
	SuggestedChoices []string
	Pending          ChoiceSet
	WorldKnowledge   map[string]map[string]Memory
}

// NewState returns an uninitialized adventure.
func NewState() *State {
	s := &State{}
	s.reset()
	s.Stage = StageUninitialized
	return s
}

func (s *State) reset() {
	*s = State{
		ID:     uuid.New(),
		Budget: media.NewBudget(),
		Visual: VisualStyle{
			Characters: media.NewReferenceStore(),
			Locations:  media.NewReferenceStore(),
		},
		Characters:     []string{},
		History:        []Event{},
		WorldKnowledge: map[string]map[string]Memory{},
	}
}

// Started reports whether Start has run.
func (s *State) Started() bool {
	return s.Stage != StageUninitialized
}

// Complete reports whether every choice has been resolved.
func (s *State) Complete() bool {
	return s.ChoicesMade >= s.TotalChoices
}

// AddCharacter appends name if not already present.
func (s *State) AddCharacter(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range s.Characters {
		if c == name {
			return false
		}
	}
	s.Characters = append(s.Characters, name)
	return true
}

// Append adds an event to the history.
func (s *State) Append(kind EventKind, payload map[string]any, at time.Time) Event {
	e := Event{Kind: kind, Payload: payload, Timestamp: at}
	s.History = append(s.History, e)
	return e
}

// RecentHistory returns a copy of the last n events.
func (s *State) RecentHistory(n int) []Event {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// AddAsset records a generated asset in the list for its kind.
func (s *State) AddAsset(kind media.Kind, ref media.AssetRef) {
	switch kind {
	case media.KindImage:
		s.Images = append(s.Images, ref)
	case media.KindVideo:
		s.Videos = append(s.Videos, ref)
	case media.KindMusic:
		s.Music = append(s.Music, ref)
	}
}

// LastImage returns the most recent image, used to seed the climax video.
func (s *State) LastImage() *media.AssetRef {
	if len(s.Images) == 0 {
		return nil
	}
	ref := s.Images[len(s.Images)-1]
	return &ref
}

// MediaCounts counts generated assets per kind.
func (s *State) MediaCounts() media.Counts {
	return media.Counts{
		Images: len(s.Images),
		Videos: len(s.Videos),
		Music:  len(s.Music),
	}
}

// Remember stores value under category and key, replacing any earlier entry
// for the key. It returns the number of entries in the category.
func (s *State) Remember(category, key, value string, at time.Time) int {
	entries, ok := s.WorldKnowledge[category]
	if !ok {
		entries = map[string]Memory{}
		s.WorldKnowledge[category] = entries
	}
	entries[key] = Memory{Value: value, Category: category, Timestamp: at}
	return len(entries)
}

// MemoryCount counts world knowledge entries across every category.
func (s *State) MemoryCount() int {
	n := 0
	for _, entries := range s.WorldKnowledge {
		n += len(entries)
	}
	return n
}

// Knowledge returns a deep copy of the world knowledge.
func (s *State) Knowledge() map[string]map[string]Memory {
	out := make(map[string]map[string]Memory, len(s.WorldKnowledge))
	for category, entries := range s.WorldKnowledge {
		cp := make(map[string]Memory, len(entries))
		for k, v := range entries {
			cp[k] = v
		}
		out[category] = cp
	}
	return out
}
