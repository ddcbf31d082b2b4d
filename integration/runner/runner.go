package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Abdullah0x0/dreamdirector/internal/handlers"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// PollInterval is how often status is checked while waiting for music.
var PollInterval = 250 * time.Millisecond

// Runner executes adventure suites against a running DreamDirector API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	RequestOverride   string // If set, replaces the story request of every suite
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		// The final choice waits for the climax video.
		Client:            &http.Client{Timeout: 7 * time.Minute},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
		Logger:            func(string, ...interface{}) {},
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite starts a fresh adventure and plays every step against it.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	request := suite.StoryRequest
	if r.RequestOverride != "" {
		request = r.RequestOverride
	}

	var opening handlers.StoryResponse
	code, err := r.post(ctx, "/api/start-story", handlers.StartStoryRequest{StoryRequest: request}, &opening)
	if err == nil && code != http.StatusOK {
		err = fmt.Errorf("start-story returned %d", code)
	}
	if err == nil {
		err = r.checkExpectations(ctx, suite.Start, &opening)
	}
	if err != nil {
		result.Error = fmt.Errorf("failed to start adventure: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.AdventureID = opening.AdventureID

	prev := opening
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult, resp := r.runStep(ctx, step, prev)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
		if resp != nil {
			prev = *resp
		}
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep posts one choice and checks expectations. A step that expects a
// non-200 status leaves the previous response in place.
func (r *Runner) runStep(ctx context.Context, step TestStep, prev handlers.StoryResponse) (TestResult, *handlers.StoryResponse) {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	chosen := step.Choice
	if chosen == ChoiceAgain {
		if len(prev.Choices) == 0 {
			result.Error = errors.New("no choices offered by the previous step")
			result.Duration = time.Since(start)
			return result, nil
		}
		chosen = prev.Choices[0]
	}

	want := step.ExpectStatus
	if want == 0 {
		want = http.StatusOK
	}

	var resp handlers.StoryResponse
	code, err := r.post(ctx, "/api/make-choice", handlers.ChoiceRequest{Choice: chosen}, &resp)
	result.StatusCode = code
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, nil
	}
	if code != want {
		result.Error = fmt.Errorf("expected status %d, got %d", want, code)
		result.Duration = time.Since(start)
		return result, nil
	}
	if code != http.StatusOK {
		result.Success = true
		result.Duration = time.Since(start)
		return result, nil
	}
	result.ResponseText = resp.Narrative

	if err := r.checkExpectations(ctx, step.Expectations, &resp); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result, nil
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result, &resp
}

// post sends a JSON body and decodes a 200 reply into out. Error replies
// are returned as a status code without an error.
func (r *Runner) post(ctx context.Context, path string, in, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}

// GetStatus retrieves the current adventure status
func (r *Runner) GetStatus(ctx context.Context) (*story.StatusSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/story-status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("story-status returned %d: %s", resp.StatusCode, string(body))
	}
	var st story.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &st, nil
}

// WaitForMusic polls status until at least n music tracks are recorded.
func (r *Runner) WaitForMusic(ctx context.Context, n int) (*story.StatusSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		st, err := r.GetStatus(ctx)
		if err != nil {
			return nil, err
		}
		if st.GeneratedMedia.Music >= n {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("timeout waiting for %d music tracks, have %d", n, st.GeneratedMedia.Music)
		case <-ticker.C:
		}
	}
}

// checkExpectations validates a story response against exp
func (r *Runner) checkExpectations(ctx context.Context, exp Expectations, resp *handlers.StoryResponse) error {
	if exp.ChoicesCount != nil && len(resp.Choices) != *exp.ChoicesCount {
		return fmt.Errorf("expected %d choices, got %d: %v", *exp.ChoicesCount, len(resp.Choices), resp.Choices)
	}
	if exp.ChoicesRemaining != nil && resp.ChoicesRemaining != *exp.ChoicesRemaining {
		return fmt.Errorf("expected choices_remaining %d, got %d", *exp.ChoicesRemaining, resp.ChoicesRemaining)
	}
	if exp.CurrentChoice != nil && resp.CurrentChoice != *exp.CurrentChoice {
		return fmt.Errorf("expected current_choice %d, got %d", *exp.CurrentChoice, resp.CurrentChoice)
	}
	if exp.StoryComplete != nil && resp.StoryComplete != *exp.StoryComplete {
		return fmt.Errorf("expected story_complete %t, got %t", *exp.StoryComplete, resp.StoryComplete)
	}

	lowerScene := strings.ToLower(resp.SceneDescription)
	for _, text := range exp.SceneContains {
		if !strings.Contains(lowerScene, strings.ToLower(text)) {
			return fmt.Errorf("expected scene to contain '%s', got '%s'", text, resp.SceneDescription)
		}
	}

	for _, key := range exp.MediaKeys {
		if resp.MediaFiles[key] == "" {
			return fmt.Errorf("expected media file '%s', got %v", key, resp.MediaFiles)
		}
	}

	if len(exp.ProgressionTypes) > 0 {
		seen := make(map[string]bool, len(resp.StoryProgression))
		types := make([]string, len(resp.StoryProgression))
		for i, p := range resp.StoryProgression {
			seen[p.Type] = true
			types[i] = p.Type
		}
		for _, want := range exp.ProgressionTypes {
			if !seen[want] {
				return fmt.Errorf("expected progression to include %s, got %v", want, types)
			}
		}
	}

	lowerNarrative := strings.ToLower(resp.Narrative)
	for _, text := range exp.NarrativeContains {
		if !strings.Contains(lowerNarrative, strings.ToLower(text)) {
			return fmt.Errorf("expected narrative to contain '%s', but it didn't", text)
		}
	}
	for _, text := range exp.NarrativeNotContains {
		if strings.Contains(lowerNarrative, strings.ToLower(text)) {
			return fmt.Errorf("expected narrative to NOT contain '%s', but it did", text)
		}
	}
	if exp.NarrativeRegex != "" {
		matched, err := regexp.MatchString(exp.NarrativeRegex, resp.Narrative)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("narrative didn't match regex pattern: %s", exp.NarrativeRegex)
		}
	}

	if exp.MusicAtLeast != nil {
		if _, err := r.WaitForMusic(ctx, *exp.MusicAtLeast); err != nil {
			return err
		}
	}
	return nil
}
