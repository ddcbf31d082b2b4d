package story

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChoiceContext is the snapshot handed to a ChoiceSource when options are
// needed for a choice moment.
type ChoiceContext struct {
	AdventureID  uuid.UUID
	Situation    string
	Scene        string
	Mood         string
	Characters   []string
	Events       int
	DangerLevel  int
	ChoicesMade  int
	TotalChoices int
}

// ResolutionContext is the snapshot handed to a ChoiceSource when the
// consequence of a choice is needed.
type ResolutionContext struct {
	AdventureID   uuid.UUID
	Scene         string
	ChoicesMade   int
	TotalChoices  int
	DangerLevel   int
	RecentHistory []Event
	Chosen        string
	Option        string
}

// ChoiceSource produces collaborator text for choice moments.
type ChoiceSource interface {
	GenerateChoices(ctx context.Context, cc ChoiceContext) (ChoiceSet, error)
	GenerateConsequence(ctx context.Context, rc ResolutionContext) (string, error)
}

type ScenarioInit struct {
	AdventureID uuid.UUID `json:"adventure_id"`
	ScenarioKey string    `json:"story_type"`
	Title       string    `json:"title"`
	Setting     string    `json:"setting"`
	Hook        string    `json:"hook"`
	Mood        string    `json:"mood"`
	Characters  []string  `json:"characters"`
	VisualStyle string    `json:"visual_style"`
	MusicThemes []string  `json:"music_themes"`
	Choices     []string  `json:"choices"`
}

type SceneDescriptor struct {
	Location  string `json:"location"`
	Mood      string `json:"mood"`
	Details   string `json:"details"`
	Narrative string `json:"narrative"`
}

// Presentation is a recorded choice moment. Degraded is set when the
// options did not come intact from the collaborator.
type Presentation struct {
	Choices  ChoiceSet `json:"choices"`
	Degraded bool      `json:"degraded"`
}

type ResolutionOutcome struct {
	Chosen      string `json:"chosen_option"`
	Narrative   string `json:"narrative"`
	ChoicesMade int    `json:"user_choices_made"`
	DangerLevel int    `json:"danger_level"`
	Final       bool   `json:"final"`
	Degraded    bool   `json:"degraded"`
}

type ContinuationOutcome struct {
	Family       string `json:"family"`
	Scene        string `json:"current_scene"`
	Narrative    string `json:"narrative"`
	NewCharacter string `json:"new_character,omitempty"`
	ChoicesMade  int    `json:"user_choices_made"`
	DangerLevel  int    `json:"danger_level"`
}

// MemoryOutcome is a stored piece of world knowledge. Visualize asks the
// caller for an illustration of it.
type MemoryOutcome struct {
	Key           string `json:"key"`
	Value         string `json:"value"`
	Category      string `json:"category"`
	CategoryCount int    `json:"category_count"`
	TotalMemories int    `json:"total_memories"`
	Visualize     bool   `json:"visualize"`
}

type ClimaxOutcome struct {
	FinalChoice string `json:"final_choice"`
	Scene       string `json:"scene"`
	DangerLevel int    `json:"danger_level"`
}

// Machine drives a State through the narrative stages. It owns no state of
// its own beyond the content tables, so one Machine serves any number of
// adventures.
type Machine struct {
	content *Content
	now     func() time.Time
}

type MachineOption func(*Machine)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		m.now = now
	}
}

func NewMachine(content *Content, opts ...MachineOption) *Machine {
	m := &Machine{
		content: content,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Content exposes the tables the machine was built with.
func (m *Machine) Content() *Content {
	return m.content
}

// Start resets st and initialises it from the scenario matching request.
func (m *Machine) Start(st *State, request string) ScenarioInit {
	request = strings.TrimSpace(request)
	scenario := m.content.MatchScenario(request)
	defaults := m.content.Defaults

	st.reset()
	st.Request = request
	st.ScenarioKey = scenario.Key
	st.Title = scenario.Title
	st.Hook = scenario.Hook
	st.CurrentScene = scenario.Setting
	st.CurrentMood = defaults.OpeningMood
	st.DangerLevel = defaults.StartingDanger
	st.TotalChoices = defaults.TotalChoices
	st.Visual.ArtStyle = scenario.VisualStyle
	st.Visual.ColorPalette = defaults.ColorPalette
	st.MusicThemes = append([]string(nil), scenario.MusicThemes...)
	st.SuggestedChoices = append([]string(nil), scenario.Choices...)
	st.Stage = StageOpening

	return ScenarioInit{
		AdventureID: st.ID,
		ScenarioKey: scenario.Key,
		Title:       scenario.Title,
		Setting:     scenario.Setting,
		Hook:        scenario.Hook,
		Mood:        st.CurrentMood,
		Characters:  append([]string(nil), scenario.Characters...),
		VisualStyle: scenario.VisualStyle,
		MusicThemes: append([]string(nil), scenario.MusicThemes...),
		Choices:     append([]string(nil), scenario.Choices...),
	}
}

// OpeningScene records the establishing beat. It may run once per adventure.
func (m *Machine) OpeningScene(st *State) (SceneDescriptor, error) {
	if !st.Started() {
		return SceneDescriptor{}, ErrNotStarted
	}
	if st.Stage != StageOpening {
		return SceneDescriptor{}, fmt.Errorf("%w: opening scene already played", ErrOutOfSequence)
	}

	scene := SceneDescriptor{
		Location:  st.CurrentScene,
		Mood:      m.content.Defaults.OpeningMood,
		Details:   m.content.Defaults.OpeningDetails,
		Narrative: st.Hook,
	}
	st.CurrentMood = scene.Mood
	st.Append(EventOpeningScene, map[string]any{
		"scene":     scene.Location,
		"mood":      scene.Mood,
		"details":   scene.Details,
		"narrative": scene.Narrative,
	}, m.now())
	st.Stage = StageChoicePending
	return scene, nil
}

// PrepareChoice validates that a choice may be presented and snapshots the
// context for the collaborator.
func (m *Machine) PrepareChoice(st *State, situation string) (ChoiceContext, error) {
	if !st.Started() {
		return ChoiceContext{}, ErrNotStarted
	}
	if st.Complete() || st.Stage == StageClimax || st.Stage == StageConcluded {
		return ChoiceContext{}, fmt.Errorf("%w: all %d choices resolved", ErrInvalidChoiceIndex, st.TotalChoices)
	}
	if st.Stage != StageChoicePending {
		return ChoiceContext{}, fmt.Errorf("%w: cannot present a choice during %s", ErrOutOfSequence, st.Stage)
	}

	situation = strings.TrimSpace(situation)
	if situation == "" {
		situation = fmt.Sprintf("You find yourself in %s. What is your next move?", st.CurrentScene)
	}

	return ChoiceContext{
		AdventureID:  st.ID,
		Situation:    situation,
		Scene:        st.CurrentScene,
		Mood:         st.CurrentMood,
		Characters:   append([]string(nil), st.Characters...),
		Events:       len(st.History),
		DangerLevel:  st.DangerLevel,
		ChoicesMade:  st.ChoicesMade,
		TotalChoices: st.TotalChoices,
	}, nil
}

// RecordChoice stores the options produced for cc. When the collaborator
// produced nothing the scenario's suggested choices are offered instead;
// a partial set is kept as is.
func (m *Machine) RecordChoice(st *State, cc ChoiceContext, set ChoiceSet, genErr error) (Presentation, error) {
	if st.ID != cc.AdventureID {
		return Presentation{}, fmt.Errorf("%w: adventure changed while choices were generated", ErrOutOfSequence)
	}

	set.Situation = cc.Situation
	degraded := genErr != nil || !set.Complete()
	if set.Empty() && len(st.SuggestedChoices) == 3 {
		set.A, set.B, set.C = st.SuggestedChoices[0], st.SuggestedChoices[1], st.SuggestedChoices[2]
	}

	st.Pending = set
	st.Append(EventChoiceMoment, map[string]any{
		"situation": set.Situation,
		"choice_a":  set.A,
		"choice_b":  set.B,
		"choice_c":  set.C,
		"degraded":  degraded,
	}, m.now())

	return Presentation{Choices: set, Degraded: degraded}, nil
}

// ExplicitChoices builds a set from caller-supplied option texts in label
// order. Texts beyond the third are ignored. It reports false when every
// text is blank.
func ExplicitChoices(texts []string) (ChoiceSet, bool) {
	var set ChoiceSet
	labels := []*string{&set.A, &set.B, &set.C}
	for i, text := range texts {
		if i == len(labels) {
			break
		}
		*labels[i] = strings.TrimSpace(text)
	}
	return set, !set.Empty()
}

// PresentChoice prepares, generates, and records a choice moment in one
// call. When explicit texts are given src is not consulted. ChoicesMade is
// never changed.
func (m *Machine) PresentChoice(ctx context.Context, st *State, situation string, src ChoiceSource, explicit ...string) (Presentation, error) {
	cc, err := m.PrepareChoice(st, situation)
	if err != nil {
		return Presentation{}, err
	}
	if set, ok := ExplicitChoices(explicit); ok {
		return m.RecordChoice(st, cc, set, nil)
	}
	set, genErr := src.GenerateChoices(ctx, cc)
	return m.RecordChoice(st, cc, set, genErr)
}

// PrepareResolution validates a resolution request and snapshots the
// context for the collaborator.
func (m *Machine) PrepareResolution(st *State, chosen string) (ResolutionContext, error) {
	chosen = strings.TrimSpace(chosen)
	if chosen == "" {
		return ResolutionContext{}, ErrEmptyChoice
	}
	if !st.Started() {
		return ResolutionContext{}, ErrNotStarted
	}
	if st.Complete() || st.Stage == StageClimax || st.Stage == StageConcluded {
		return ResolutionContext{}, fmt.Errorf("%w: all %d choices already resolved", ErrInvalidChoiceIndex, st.TotalChoices)
	}
	if st.Stage != StageChoicePending {
		return ResolutionContext{}, fmt.Errorf("%w: cannot resolve a choice during %s", ErrOutOfSequence, st.Stage)
	}

	option := chosen
	if text, ok := st.Pending.Lookup(chosen); ok {
		option = text
	}

	return ResolutionContext{
		AdventureID:   st.ID,
		Scene:         st.CurrentScene,
		ChoicesMade:   st.ChoicesMade,
		TotalChoices:  st.TotalChoices,
		DangerLevel:   st.DangerLevel,
		RecentHistory: st.RecentHistory(2),
		Chosen:        chosen,
		Option:        option,
	}, nil
}

// FallbackConsequence is the templated narrative used when the
// collaborator cannot describe a consequence. It quotes the choice as the
// player made it.
func FallbackConsequence(chosen, scene string) string {
	return fmt.Sprintf("Your choice to %s has immediate consequences in %s. The situation evolves as you face the results of your decision.", chosen, scene)
}

// ApplyResolution advances the counters and records the consequence. The
// counters move even when the collaborator failed.
func (m *Machine) ApplyResolution(st *State, rc ResolutionContext, narrative string, genErr error) (ResolutionOutcome, error) {
	if st.ID != rc.AdventureID || st.ChoicesMade != rc.ChoicesMade {
		return ResolutionOutcome{}, fmt.Errorf("%w: adventure changed while the choice was resolved", ErrOutOfSequence)
	}

	narrative = strings.TrimSpace(narrative)
	degraded := false
	if genErr != nil || narrative == "" {
		narrative = FallbackConsequence(rc.Chosen, rc.Scene)
		degraded = true
	}

	st.ChoicesMade++
	st.DangerLevel = min(10, st.DangerLevel+1)
	st.Pending = ChoiceSet{}
	st.Stage = StageResolving
	st.Append(EventChoiceResolution, map[string]any{
		"chosen_option": rc.Chosen,
		"option":        rc.Option,
		"narrative":     narrative,
		"degraded":      degraded,
	}, m.now())

	return ResolutionOutcome{
		Chosen:      rc.Chosen,
		Narrative:   narrative,
		ChoicesMade: st.ChoicesMade,
		DangerLevel: st.DangerLevel,
		Final:       st.Complete(),
		Degraded:    degraded,
	}, nil
}

// ResolveChoice prepares, generates, and applies a resolution in one call.
// Routing to ContinueNarrative or Climax is left to the caller.
func (m *Machine) ResolveChoice(ctx context.Context, st *State, chosen string, src ChoiceSource) (ResolutionOutcome, error) {
	rc, err := m.PrepareResolution(st, chosen)
	if err != nil {
		return ResolutionOutcome{}, err
	}
	text, genErr := src.GenerateConsequence(ctx, rc)
	return m.ApplyResolution(st, rc, text, genErr)
}

// ContinueNarrative moves the story to the branch for the current family
// and choice count. It is deterministic.
func (m *Machine) ContinueNarrative(st *State) (ContinuationOutcome, error) {
	if !st.Started() {
		return ContinuationOutcome{}, ErrNotStarted
	}
	if st.ChoicesMade < 1 || st.Complete() {
		return ContinuationOutcome{}, fmt.Errorf("%w: cannot continue after %d choices", ErrInvalidChoiceIndex, st.ChoicesMade)
	}
	if st.Stage != StageResolving {
		return ContinuationOutcome{}, fmt.Errorf("%w: cannot continue during %s", ErrOutOfSequence, st.Stage)
	}

	family := m.content.ClassifyFamily(st.CurrentScene)
	branch, ok := m.content.Branch(family, st.ChoicesMade)
	if !ok {
		return ContinuationOutcome{}, fmt.Errorf("%w: no branch %d for family %s", ErrInvalidChoiceIndex, st.ChoicesMade, family)
	}

	st.CurrentScene = expand(branch.Scene, st.Request, st.CurrentScene)
	added := ""
	if st.AddCharacter(branch.Character) {
		added = branch.Character
	}
	st.DangerLevel = min(10, 3+st.ChoicesMade*2)
	st.Stage = StageChoicePending
	st.Append(EventStoryContinuation, map[string]any{
		"narrative":    branch.Narrative,
		"scene":        st.CurrentScene,
		"family":       family,
		"choices_made": st.ChoicesMade,
	}, m.now())

	return ContinuationOutcome{
		Family:       family,
		Scene:        st.CurrentScene,
		Narrative:    branch.Narrative,
		NewCharacter: added,
		ChoicesMade:  st.ChoicesMade,
		DangerLevel:  st.DangerLevel,
	}, nil
}

// MemoryVisualInterval is the number of entries a category collects
// between illustrations.
const MemoryVisualInterval = 3

// RememberVisual records world knowledge for the adventure. It may run at
// any stage once the adventure has started and never touches the choice
// counters.
func (m *Machine) RememberVisual(st *State, category, key, value string) (MemoryOutcome, error) {
	if !st.Started() {
		return MemoryOutcome{}, ErrNotStarted
	}
	category = strings.TrimSpace(category)
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if category == "" || key == "" || value == "" {
		return MemoryOutcome{}, ErrEmptyMemory
	}

	n := st.Remember(category, key, value, m.now())
	return MemoryOutcome{
		Key:           key,
		Value:         value,
		Category:      category,
		CategoryCount: n,
		TotalMemories: st.MemoryCount(),
		Visualize:     n%MemoryVisualInterval == 0,
	}, nil
}

// Climax enters the finale once every choice is resolved and opens the
// video budget window.
func (m *Machine) Climax(st *State, finalChoice string) (ClimaxOutcome, error) {
	if !st.Started() {
		return ClimaxOutcome{}, ErrNotStarted
	}
	if !st.Complete() || st.Stage != StageResolving {
		return ClimaxOutcome{}, fmt.Errorf("%w: climax requires %d resolved choices, have %d", ErrInvalidChoiceIndex, st.TotalChoices, st.ChoicesMade)
	}

	st.DangerLevel = 10
	st.Stage = StageClimax
	st.Budget.OpenVideoWindow()
	st.Append(EventStoryClimax, map[string]any{
		"final_choice": finalChoice,
		"scene":        st.CurrentScene,
	}, m.now())

	return ClimaxOutcome{
		FinalChoice: finalChoice,
		Scene:       st.CurrentScene,
		DangerLevel: st.DangerLevel,
	}, nil
}

// Conclude marks the adventure finished after the climax media settled.
func (m *Machine) Conclude(st *State) error {
	if st.Stage != StageClimax {
		return fmt.Errorf("%w: conclude requires the climax, stage is %s", ErrOutOfSequence, st.Stage)
	}
	st.Stage = StageConcluded
	return nil
}
