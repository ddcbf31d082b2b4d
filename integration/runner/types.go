package runner

import "time"

// ChoiceAgain replays the first choice offered by the previous step.
const ChoiceAgain = "FIRST_OFFERED"

// TestSuite defines a complete adventure run against the API.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name         string       `json:"name"`
	StoryRequest string       `json:"story_request,omitempty"` // Used for regular tests
	Start        Expectations `json:"expect_start,omitempty"`
	Steps        []TestStep   `json:"steps,omitempty"`
	Cases        []string     `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single choice and its expected outcomes.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Choice       string       `json:"choice"`
	ExpectStatus int          `json:"expect_status,omitempty"` // defaults to 200
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a step executes
type Expectations struct {
	ChoicesCount     *int     `json:"choices_count,omitempty"`
	ChoicesRemaining *int     `json:"choices_remaining,omitempty"`
	CurrentChoice    *int     `json:"current_choice,omitempty"`
	StoryComplete    *bool    `json:"story_complete,omitempty"`
	SceneContains    []string `json:"scene_contains,omitempty"`
	MediaKeys        []string `json:"media_keys,omitempty"`
	ProgressionTypes []string `json:"progression_includes,omitempty"`

	// Response Analysis
	NarrativeContains    []string `json:"narrative_contains,omitempty"`
	NarrativeNotContains []string `json:"narrative_not_contains,omitempty"`
	NarrativeRegex       string   `json:"narrative_regex,omitempty"`

	// Music arrives from the worker pool; the runner polls status until the
	// count is reached.
	MusicAtLeast *int `json:"music_at_least,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	StatusCode   int
}

// TestJob represents a loaded test suite
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job         TestJob
	Results     []TestResult
	Error       error
	Duration    time.Duration
	AdventureID string
}
