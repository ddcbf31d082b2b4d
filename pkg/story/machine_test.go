package story

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	choices     ChoiceSet
	choicesErr  error
	consequence string
	conseqErr   error
	choiceCalls int
	conseqCalls int
}

func (s *stubSource) GenerateChoices(ctx context.Context, cc ChoiceContext) (ChoiceSet, error) {
	s.choiceCalls++
	return s.choices, s.choicesErr
}

func (s *stubSource) GenerateConsequence(ctx context.Context, rc ResolutionContext) (string, error) {
	s.conseqCalls++
	return s.consequence, s.conseqErr
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	content, err := DefaultContent()
	require.NoError(t, err)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewMachine(content, WithClock(func() time.Time { return fixed }))
}

func goodSource() *stubSource {
	return &stubSource{
		choices: ChoiceSet{
			A: "Hack the tower's security grid",
			B: "Bribe a corporate guard",
			C: "Follow Kira into the subway",
		},
		consequence: "Alarms scream across the plaza as your intrusion is noticed. Kira pulls you into the shadows.",
	}
}

// startAndOpen runs Start and OpeningScene.
func startAndOpen(t *testing.T, m *Machine, request string) *State {
	t.Helper()
	st := NewState()
	m.Start(st, request)
	_, err := m.OpeningScene(st)
	require.NoError(t, err)
	return st
}

func TestMachine_CyberpunkEndToEnd(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := NewState()
	init := m.Start(st, "a cyberpunk detective story")
	assert.Equal(t, "cyberpunk", init.ScenarioKey)
	assert.Equal(t, "Cyberpunk Detective Noir", init.Title)
	assert.Equal(t, "mysterious", init.Mood)
	assert.Equal(t, 1, st.DangerLevel)

	_, err := m.OpeningScene(st)
	require.NoError(t, err)

	p, err := m.PresentChoice(ctx, st, "", src)
	require.NoError(t, err)
	for _, opt := range p.Choices.Options() {
		assert.NotEmpty(t, opt)
	}
	assert.False(t, p.Degraded)

	res, err := m.ResolveChoice(ctx, st, "A", src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChoicesMade)
	assert.Equal(t, 2, res.DangerLevel)
	assert.False(t, res.Final)

	cont, err := m.ContinueNarrative(st)
	require.NoError(t, err)
	assert.Equal(t, "cyberpunk", cont.Family)
	assert.Equal(t, "A hidden underground resistance hideout beneath Neo-Tokyo", cont.Scene)
	assert.Equal(t, 5, cont.DangerLevel)
	assert.Equal(t, StageChoicePending, st.Stage)
}

func TestMachine_ForestFirstBranch(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := startAndOpen(t, m, "a walk through a magic forest")
	assert.Equal(t, "mystical", st.ScenarioKey)

	_, err := m.PresentChoice(ctx, st, "", src)
	require.NoError(t, err)
	_, err = m.ResolveChoice(ctx, st, "B", src)
	require.NoError(t, err)

	cont, err := m.ContinueNarrative(st)
	require.NoError(t, err)
	assert.Equal(t, "A mystical clearing where reality bends and magic flows freely", cont.Scene)
	assert.Equal(t, 5, cont.DangerLevel)
}

func TestMachine_DangerFormula(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := startAndOpen(t, m, "a heist on a floating casino")
	expected := []int{5, 7, 9, 10}

	for i, want := range expected {
		_, err := m.PresentChoice(ctx, st, "", src)
		require.NoError(t, err)
		_, err = m.ResolveChoice(ctx, st, "C", src)
		require.NoError(t, err)

		cont, err := m.ContinueNarrative(st)
		require.NoError(t, err)
		assert.Equal(t, GenericFamily, cont.Family)
		assert.Equal(t, want, cont.DangerLevel, "danger after choice %d", i+1)
	}
}

func TestMachine_ChoicesMadeNeverExceedsTotal(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := startAndOpen(t, m, "a dragon hunt")

	for i := 1; i <= 5; i++ {
		_, err := m.PresentChoice(ctx, st, "", src)
		require.NoError(t, err)

		res, err := m.ResolveChoice(ctx, st, "A", src)
		require.NoError(t, err)
		assert.Equal(t, i, res.ChoicesMade)
		assert.Equal(t, i == 5, res.Final)

		if i < 5 {
			_, err = m.ContinueNarrative(st)
			require.NoError(t, err)
		}
	}

	_, err := m.ContinueNarrative(st)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex, "the fifth choice routes to the climax")

	_, err = m.PrepareResolution(st, "A")
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)

	climax, err := m.Climax(st, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, climax.DangerLevel)
	assert.True(t, st.Budget.VideoWindowOpen())

	require.NoError(t, m.Conclude(st))
	assert.Equal(t, StageConcluded, st.Stage)

	_, err = m.ResolveChoice(ctx, st, "A", src)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)
	assert.Equal(t, 5, st.ChoicesMade)
}

func TestMachine_PresentChoiceTwiceDoesNotAdvance(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := startAndOpen(t, m, "a cyberpunk heist")

	_, err := m.PresentChoice(ctx, st, "", src)
	require.NoError(t, err)
	_, err = m.PresentChoice(ctx, st, "A new alarm sounds.", src)
	require.NoError(t, err)

	assert.Equal(t, 0, st.ChoicesMade)
	assert.Equal(t, "A new alarm sounds.", st.Pending.Situation)
	assert.Equal(t, 2, src.choiceCalls)
}

func TestMachine_ResolveFallbackOnProviderFailure(t *testing.T) {
	m := newTestMachine(t)
	ctx := context.Background()
	src := goodSource()
	src.conseqErr = errors.New("connection refused")

	st := startAndOpen(t, m, "a cyberpunk detective story")
	_, err := m.PresentChoice(ctx, st, "", src)
	require.NoError(t, err)

	scene := st.CurrentScene
	res, err := m.ResolveChoice(ctx, st, "Bribe a corporate guard", src)
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Narrative)
	assert.Contains(t, res.Narrative, "Bribe a corporate guard")
	assert.Contains(t, res.Narrative, scene)
	assert.Equal(t, 1, res.ChoicesMade, "counters advance regardless of the collaborator")
	assert.Equal(t, 2, res.DangerLevel)
}

func TestMachine_ResolveLabelUsesPendingOption(t *testing.T) {
	m := newTestMachine(t)
	ctx := context.Background()
	src := goodSource()
	src.consequence = ""

	st := startAndOpen(t, m, "a cyberpunk detective story")
	_, err := m.PresentChoice(ctx, st, "", src)
	require.NoError(t, err)

	res, err := m.ResolveChoice(ctx, st, "B", src)
	require.NoError(t, err)
	assert.True(t, res.Degraded, "empty collaborator text falls back")
	assert.Contains(t, res.Narrative, "Your choice to B has immediate consequences")

	last := st.History[len(st.History)-1]
	assert.Equal(t, "Bribe a corporate guard", last.Payload["option"])
}

func TestMachine_PresentChoiceFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		source   *stubSource
		expected ChoiceSet
		degraded bool
	}{
		{
			name:     "collaborator unavailable uses suggested choices",
			source:   &stubSource{choicesErr: errors.New("timeout")},
			expected: ChoiceSet{A: "Infiltrate the corporate tower", B: "Meet with underground contacts", C: "Investigate the abandoned subway"},
			degraded: true,
		},
		{
			name:     "partial set is kept",
			source:   &stubSource{choices: ChoiceSet{A: "Run", C: "Hide"}},
			expected: ChoiceSet{A: "Run", C: "Hide"},
			degraded: true,
		},
		{
			name:     "complete set",
			source:   &stubSource{choices: ChoiceSet{A: "Run", B: "Fight", C: "Hide"}},
			expected: ChoiceSet{A: "Run", B: "Fight", C: "Hide"},
			degraded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t)
			st := startAndOpen(t, m, "cyberpunk")

			p, err := m.PresentChoice(context.Background(), st, "", tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.A, p.Choices.A)
			assert.Equal(t, tt.expected.B, p.Choices.B)
			assert.Equal(t, tt.expected.C, p.Choices.C)
			assert.Equal(t, tt.degraded, p.Degraded)
			assert.Contains(t, p.Choices.Situation, "You find yourself in Neo-Tokyo 2087")
		})
	}
}

func TestMachine_SequencingErrors(t *testing.T) {
	m := newTestMachine(t)
	ctx := context.Background()
	src := goodSource()

	st := NewState()
	_, err := m.OpeningScene(st)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = m.PresentChoice(ctx, st, "", src)
	assert.ErrorIs(t, err, ErrNotStarted)

	m.Start(st, "dragon")
	_, err = m.PresentChoice(ctx, st, "", src)
	assert.ErrorIs(t, err, ErrOutOfSequence, "choices wait for the opening scene")

	_, err = m.OpeningScene(st)
	require.NoError(t, err)
	_, err = m.OpeningScene(st)
	assert.ErrorIs(t, err, ErrOutOfSequence)

	_, err = m.ResolveChoice(ctx, st, "   ", src)
	assert.ErrorIs(t, err, ErrEmptyChoice)

	_, err = m.ContinueNarrative(st)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)

	_, err = m.Climax(st, "A")
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)
	assert.Equal(t, 0, st.ChoicesMade)
}

func TestMachine_StartIsDeterministicAndResets(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()

	st := startAndOpen(t, m, "a knight and a dragon")
	first := st.Status()
	_, err := m.PresentChoice(context.Background(), st, "", src)
	require.NoError(t, err)
	_, err = m.ResolveChoice(context.Background(), st, "A", src)
	require.NoError(t, err)
	st.Budget.Record(media.KindImage)
	oldID := st.ID

	init := m.Start(st, "a knight and a dragon")
	assert.NotEqual(t, oldID, st.ID)
	assert.Equal(t, "fantasy", init.ScenarioKey)
	assert.Equal(t, first.CurrentScene, st.CurrentScene)
	assert.Equal(t, "epic fantasy with dramatic fire lighting and volcanic atmosphere", st.Visual.ArtStyle)
	assert.Equal(t, 0, st.ChoicesMade)
	assert.Equal(t, 1, st.DangerLevel)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Budget.Counts().Images)
	assert.Equal(t, StageOpening, st.Stage)
}

func TestMachine_CustomScenario(t *testing.T) {
	m := newTestMachine(t)
	st := NewState()

	init := m.Start(st, "a space pirate saga")
	assert.Equal(t, "adventure", init.ScenarioKey)
	assert.Equal(t, "An immersive world based on: a space pirate saga", st.CurrentScene)
	assert.Equal(t, "cinematic realism with atmospheric lighting", st.Visual.ArtStyle)
	assert.Equal(t, "rich atmospheric lighting with dramatic shadows", st.Visual.ColorPalette)
}

func TestMachine_BranchAddsCharacterOnce(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	ctx := context.Background()

	st := startAndOpen(t, m, "cyberpunk")
	for i := 0; i < 2; i++ {
		_, err := m.PresentChoice(ctx, st, "", src)
		require.NoError(t, err)
		_, err = m.ResolveChoice(ctx, st, "A", src)
		require.NoError(t, err)
		_, err = m.ContinueNarrative(st)
		require.NoError(t, err)
	}

	assert.Equal(t, "The corporate zaibatsu tower's executive floors", st.CurrentScene)
	assert.Equal(t, []string{"Director Sato - Corporate AI Overlord"}, st.Characters)
}

func TestStatus_StageLabels(t *testing.T) {
	tests := []struct {
		events   int
		expected string
	}{
		{0, "beginning"},
		{2, "beginning"},
		{3, "middle"},
		{7, "middle"},
		{8, "climax"},
		{20, "climax"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, StageLabel(tt.events), "events=%d", tt.events)
	}

	st := NewState()
	assert.Equal(t, "no_story", st.Status().Status)
	assert.Empty(t, st.Status().AdventureID)
}

func TestMachine_ExplicitChoicesSkipSource(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	st := startAndOpen(t, m, "a cyberpunk detective story")

	p, err := m.PresentChoice(context.Background(), st, "The vault door hums.", src,
		"Cut the power", " Wait for Kira ", "Walk away")
	require.NoError(t, err)

	assert.Equal(t, 0, src.choiceCalls)
	assert.False(t, p.Degraded)
	assert.Equal(t, []string{"Cut the power", "Wait for Kira", "Walk away"}, p.Choices.Options())
	assert.Equal(t, "The vault door hums.", st.Pending.Situation)
	assert.Equal(t, "Wait for Kira", st.Pending.B)
	assert.Equal(t, 0, st.ChoicesMade)

	res, err := m.ResolveChoice(context.Background(), st, "C", src)
	require.NoError(t, err)
	assert.Equal(t, "C", res.Chosen)
	assert.Equal(t, "Walk away", st.History[len(st.History)-1].Payload["option"])
}

func TestMachine_BlankExplicitChoicesUseSource(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	st := startAndOpen(t, m, "a cyberpunk detective story")

	p, err := m.PresentChoice(context.Background(), st, "", src, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, 1, src.choiceCalls)
	assert.Equal(t, "Bribe a corporate guard", p.Choices.B)
}

func TestExplicitChoices(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  ChoiceSet
		ok    bool
	}{
		{"none", nil, ChoiceSet{}, false},
		{"blank", []string{" ", ""}, ChoiceSet{}, false},
		{"partial", []string{"Run"}, ChoiceSet{A: "Run"}, true},
		{"extra texts ignored", []string{"a", "b", "c", "d"}, ChoiceSet{A: "a", B: "b", C: "c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExplicitChoices(tt.texts)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMachine_PartialExplicitChoicesDegraded(t *testing.T) {
	m := newTestMachine(t)
	src := goodSource()
	st := startAndOpen(t, m, "a cyberpunk detective story")

	p, err := m.PresentChoice(context.Background(), st, "", src, "Cut the power")
	require.NoError(t, err)
	assert.Equal(t, 0, src.choiceCalls)
	assert.True(t, p.Degraded)
	assert.Equal(t, []string{"Cut the power", "", ""}, p.Choices.Options())
}

func TestMachine_RememberVisual(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.RememberVisual(NewState(), "places", "tower", "Arasaka spire")
	assert.ErrorIs(t, err, ErrNotStarted)

	st := startAndOpen(t, m, "a cyberpunk detective story")
	_, err = m.RememberVisual(st, "places", " ", "Arasaka spire")
	assert.ErrorIs(t, err, ErrEmptyMemory)

	first, err := m.RememberVisual(st, "places", "tower", "Arasaka spire")
	require.NoError(t, err)
	assert.Equal(t, 1, first.CategoryCount)
	assert.False(t, first.Visualize)

	again, err := m.RememberVisual(st, "places", "tower", "The spire, burning")
	require.NoError(t, err)
	assert.Equal(t, 1, again.CategoryCount, "same key replaces the entry")
	assert.Equal(t, "The spire, burning", st.WorldKnowledge["places"]["tower"].Value)

	_, err = m.RememberVisual(st, "people", "kira", "hacker with a debt")
	require.NoError(t, err)
	_, err = m.RememberVisual(st, "places", "subway", "flooded line 4")
	require.NoError(t, err)

	third, err := m.RememberVisual(st, "places", "market", "night market")
	require.NoError(t, err)
	assert.Equal(t, 3, third.CategoryCount)
	assert.Equal(t, 4, third.TotalMemories)
	assert.True(t, third.Visualize)

	assert.Equal(t, 4, st.Status().WorldMemories)
	assert.Equal(t, 0, st.ChoicesMade)
	assert.Equal(t, StageChoicePending, st.Stage)
}
