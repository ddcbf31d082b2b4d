package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/internal/services"
	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
	"github.com/Abdullah0x0/dreamdirector/pkg/choice"
	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router http.Handler
	store  *mediagen.AssetStore
	gw     *media.MockGateway
	orch   *orchestrator.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	content, err := story.DefaultContent()
	require.NoError(t, err)

	store, err := mediagen.NewAssetStore(t.TempDir())
	require.NoError(t, err)

	gw := media.NewMockGateway()
	orch := orchestrator.New(
		story.NewMachine(content),
		choice.NewOrchestrator(services.NewMockLLMAPI(), choice.WithLogger(testLogger())),
		gw,
		orchestrator.WithLogger(testLogger()),
		orchestrator.WithArchive(services.NewMemoryCache(), time.Hour),
	)

	router := NewRouter(RouterDeps{
		Director: orch,
		Files:    store,
		Health:   NewHealthHandler(nil, nil, store.Dir(), testLogger()),
		Logger:   testLogger(),
	})
	return &testServer{router: router, store: store, gw: gw, orch: orch}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestStartStory(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"a cyberpunk detective story"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decodeBody[StoryResponse](t, rr)
	assert.NotEmpty(t, resp.AdventureID)
	assert.Equal(t, "opening_scene", resp.SceneID)
	assert.Len(t, resp.Choices, 3)
	assert.Equal(t, 5, resp.ChoicesRemaining)
	assert.Equal(t, 0, resp.CurrentChoice)
	assert.Equal(t, 5, resp.TotalChoices)
	assert.False(t, resp.StoryComplete)
	assert.Equal(t, "generated_scene_1.png", resp.MediaFiles["opening_image"])
	assert.NotEmpty(t, resp.Narrative)
	assert.Contains(t, resp.SceneDescription, "Neo-Tokyo")
}

func TestStartStory_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"story_request":`},
		{"missing field", `{}`},
		{"blank request", `{"story_request":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/api/start-story", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decodeBody[ErrorResponse](t, rr).Error)
		})
	}
}

func TestMakeChoice_BeforeStart(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/make-choice", `{"choice":"A"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMakeChoice_FullAdventure(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"an enchanted forest quest"}`).Code)

	for i := 1; i <= 4; i++ {
		rr := s.do(t, http.MethodPost, "/api/make-choice", `{"choice":"A"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decodeBody[StoryResponse](t, rr)
		assert.False(t, resp.StoryComplete)
		assert.Len(t, resp.Choices, 3)
		assert.Equal(t, i, resp.CurrentChoice)
		assert.Equal(t, 5-i, resp.ChoicesRemaining)
		require.NotEmpty(t, resp.StoryProgression)
		assert.Equal(t, "choice_result", resp.StoryProgression[0].Type)
		assert.Equal(t, "new_situation", resp.StoryProgression[len(resp.StoryProgression)-1].Type)
	}

	rr := s.do(t, http.MethodPost, "/api/make-choice", `{"choice":"B"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"choices":[]`)

	resp := decodeBody[StoryResponse](t, rr)
	assert.True(t, resp.StoryComplete)
	assert.Equal(t, 0, resp.ChoicesRemaining)
	assert.Equal(t, 5, resp.CurrentChoice)
	assert.True(t, strings.HasSuffix(resp.SceneDescription, " - FINALE"))
	assert.Equal(t, "generated_video_1.mp4", resp.MediaFiles["finale_video"])
	last := resp.StoryProgression[len(resp.StoryProgression)-1]
	assert.Equal(t, "story_climax", last.Type)
	assert.Contains(t, last.Content, "EPIC STORY COMPLETE")

	rr = s.do(t, http.MethodPost, "/api/make-choice", `{"choice":"A"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	status := decodeBody[story.StatusSnapshot](t, s.do(t, http.MethodGet, "/api/story-status", ""))
	assert.Equal(t, 5, status.ChoicesMade)
	assert.Equal(t, 0, status.ChoicesRemaining)

	archived := s.do(t, http.MethodGet, "/api/adventures/"+status.AdventureID, "")
	require.Equal(t, http.StatusOK, archived.Code)
	exp := decodeBody[orchestrator.Export](t, archived)
	assert.Equal(t, status.AdventureID, exp.AdventureID)
	assert.NotEmpty(t, exp.History)

	listing := decodeBody[struct {
		Adventures []orchestrator.ArchiveEntry `json:"adventures"`
		Total      int                         `json:"total"`
	}](t, s.do(t, http.MethodGet, "/api/adventures", ""))
	assert.Equal(t, 1, listing.Total)
	require.Len(t, listing.Adventures, 1)
	assert.Equal(t, status.AdventureID, listing.Adventures[0].AdventureID)
	assert.Equal(t, 5, listing.Adventures[0].ChoicesMade)
}

func TestMakeChoice_EmptyChoice(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"space"}`).Code)

	rr := s.do(t, http.MethodPost, "/api/make-choice", `{"choice":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestArchived_Unknown(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/adventures/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenerateMedia(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/generate-media", `{"type":"image","prompt":"a lighthouse in a storm"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody[MediaResponse](t, rr)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Image generated", resp.Message)
	assert.Equal(t, "generated_scene_1.png", resp.GeneratedFile)
	assert.Equal(t, "/api/media/generated_scene_1.png", resp.URL)
	assert.Equal(t, 1, resp.TotalFiles)

	s.gw.GenerateVideoFunc = func(ctx context.Context, prompt string, style media.StyleContext, seed *media.AssetRef) media.Result {
		return media.Failed(media.KindVideo, errors.New("quota"))
	}
	rr = s.do(t, http.MethodPost, "/api/generate-media", `{"type":"video","prompt":"a chase"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decodeBody[MediaResponse](t, rr)
	assert.Equal(t, "fallback_to_image", resp.Result.Method)
	assert.Equal(t, "generated_scene_2.png", resp.GeneratedFile)

	rr = s.do(t, http.MethodPost, "/api/generate-media", `{"type":"hologram","prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMediaFilesAndServe(t *testing.T) {
	s := newTestServer(t)

	ref, err := s.store.Save("generated_scene_20260101_120000.png", []byte("png-bytes"))
	require.NoError(t, err)

	listing := decodeBody[mediagen.Listing](t, s.do(t, http.MethodGet, "/api/media-files", ""))
	assert.Contains(t, listing.Images, ref.String())

	rr := s.do(t, http.MethodGet, "/api/media/"+ref.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png-bytes", rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/media/missing.png", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/media/notes.txt", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	_, err = os.Stat(filepath.Join(s.store.Dir(), ref.String()))
	require.NoError(t, err)
}

func TestCharacterPortrait(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/character-portrait", `{"name":"Kira"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"cyberpunk"}`).Code)

	// The opening scene already spent the image budget.
	rr = s.do(t, http.MethodPost, "/api/character-portrait", `{"name":"Kira","personality":"stoic"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[orchestrator.PortraitResult](t, rr)
	assert.Equal(t, "Kira", res.Name)
	assert.False(t, res.Reused)
	assert.Equal(t, media.StatusSkipped, res.Image.Status)
	assert.Contains(t, res.Prompt, "Character portrait: Kira, stoic personality")

	rr = s.do(t, http.MethodPost, "/api/character-portrait", `{"personality":"nameless"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPresentChoice(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/present-choice", `{}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"a forest of magic"}`).Code)

	rr = s.do(t, http.MethodPost, "/api/present-choice",
		`{"situation":"The wolves circle.","choices":["Climb the oak","Light a torch","Howl back"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[orchestrator.ChoiceResult](t, rr)
	assert.Equal(t, "The wolves circle.", res.Situation)
	assert.Equal(t, []string{"Climb the oak", "Light a torch", "Howl back"}, res.Choices)
	assert.Equal(t, 0, res.ChoicesMade)

	rr = s.do(t, http.MethodPost, "/api/present-choice", `{"choices":["a","b","c","d"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/make-choice", `{"choice":"B"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	exp, err := s.orch.Export()
	require.NoError(t, err)
	var option any
	for _, e := range exp.History {
		if e.Kind == story.EventChoiceResolution {
			option = e.Payload["option"]
		}
	}
	assert.Equal(t, "Light a torch", option)
}

func TestVisualMemory(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/visual-memory", `{"key":"oak","value":"ancient","category":"places"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"a forest of magic"}`).Code)

	rr = s.do(t, http.MethodPost, "/api/visual-memory", `{"key":"oak","category":"places"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = s.do(t, http.MethodPost, "/api/visual-memory", `{"key":"oak","value":"  ","category":"places"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var res orchestrator.MemoryResult
	for _, key := range []string{"oak", "brook", "ruin"} {
		rr = s.do(t, http.MethodPost, "/api/visual-memory", `{"key":"`+key+`","value":"ancient","category":"places"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res = decodeBody[orchestrator.MemoryResult](t, rr)
	}
	assert.Equal(t, "ruin", res.Key)
	assert.Equal(t, 3, res.CategoryCount)
	assert.True(t, res.Visualize)
	assert.Equal(t, media.StatusSkipped, res.Image.Status, "the opening scene spent the image budget")

	status := decodeBody[story.StatusSnapshot](t, s.do(t, http.MethodGet, "/api/story-status", ""))
	assert.Equal(t, 3, status.WorldMemories)
}

func TestStoryExport(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/story-export", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	start := decodeBody[StoryResponse](t, s.do(t, http.MethodPost, "/api/start-story", `{"story_request":"pirates on the high seas"}`))

	rr = s.do(t, http.MethodGet, "/api/story-export", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "dreamdirector_"+start.AdventureID[:8]+".pdf")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "dreamdirector_12345678.pdf", exportFilename("1234567890ab"))
	assert.Equal(t, "dreamdirector_abc.pdf", exportFilename("abc"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{orchestrator.ErrEmptyRequest, http.StatusBadRequest},
		{orchestrator.ErrInvalidRequest, http.StatusBadRequest},
		{story.ErrEmptyChoice, http.StatusBadRequest},
		{story.ErrEmptyMemory, http.StatusBadRequest},
		{story.ErrInvalidChoiceIndex, http.StatusConflict},
		{story.ErrOutOfSequence, http.StatusConflict},
		{story.ErrNotStarted, http.StatusConflict},
		{orchestrator.ErrNotArchived, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMergeListing(t *testing.T) {
	got := mergeListing(
		mediagen.Listing{Images: []string{"a.png"}, Music: []string{"m.wav"}},
		mediagen.Listing{Images: []string{"a.png", "b.png"}, Videos: []string{"v.mp4"}},
	)
	assert.Equal(t, []string{"a.png", "b.png"}, got.Images)
	assert.Equal(t, []string{"v.mp4"}, got.Videos)
	assert.Equal(t, []string{"m.wav"}, got.Music)
}
