package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/internal/handlers"
	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

// apiClient talks to the DreamDirector HTTP API.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a request and decodes a JSON reply into out. Non-2xx replies are
// turned into errors carrying the API's message.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) startStory(ctx context.Context, request string) (*handlers.StoryResponse, error) {
	var resp handlers.StoryResponse
	if err := c.do(ctx, http.MethodPost, "/api/start-story", handlers.StartStoryRequest{StoryRequest: request}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) makeChoice(ctx context.Context, choice string) (*handlers.StoryResponse, error) {
	var resp handlers.StoryResponse
	if err := c.do(ctx, http.MethodPost, "/api/make-choice", handlers.ChoiceRequest{Choice: choice}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) status(ctx context.Context) (*story.StatusSnapshot, error) {
	var st story.StatusSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/story-status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) generateMedia(ctx context.Context, kind, prompt string) (*handlers.MediaResponse, error) {
	req := map[string]string{"type": kind, "prompt": prompt}
	var resp handlers.MediaResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-media", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) mediaFiles(ctx context.Context) (*mediagen.Listing, error) {
	var listing mediagen.Listing
	if err := c.do(ctx, http.MethodGet, "/api/media-files", nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *apiClient) portrait(ctx context.Context, name string) (*orchestrator.PortraitResult, error) {
	var resp orchestrator.PortraitResult
	if err := c.do(ctx, http.MethodPost, "/api/character-portrait", orchestrator.PortraitRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) archived(ctx context.Context) ([]orchestrator.ArchiveEntry, error) {
	var resp struct {
		Adventures []orchestrator.ArchiveEntry `json:"adventures"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/adventures", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Adventures, nil
}

// exportPDF downloads the story transcript into dir and returns the path.
func (c *apiClient) exportPDF(ctx context.Context, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/story-export", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errorResp handlers.ErrorResponse
		if json.Unmarshal(body, &errorResp) == nil && errorResp.Error != "" {
			return "", fmt.Errorf("export failed: %s", errorResp.Error)
		}
		return "", fmt.Errorf("export failed with status %d", resp.StatusCode)
	}

	name := "dreamdirector.pdf"
	if cd := resp.Header.Get("Content-Disposition"); strings.Contains(cd, "filename=") {
		name = strings.Trim(cd[strings.Index(cd, "filename=")+len("filename="):], `"`)
	}
	path := filepath.Join(dir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// listenToSSE connects to the SSE endpoint and streams events to a channel
func (c *apiClient) listenToSSE(ctx context.Context, adventureID string, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/api/events/%s", c.baseURL, adventureID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream outlives the per-request timeout of the main client.
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		// Parse SSE format
		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataJSON := strings.TrimPrefix(line, "data: ")
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(dataJSON), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}

	return nil
}
