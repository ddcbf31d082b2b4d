package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/internal/services/events"
)

func TestEventsHandler_Unavailable(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/events/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestEventsHandler_InvalidID(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/api/events/{id}", NewEventsHandler(events.NewBroadcaster(client, testLogger()), testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsHandler_StreamsPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	broadcaster := events.NewBroadcaster(client, testLogger())

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/api/events/{id}", NewEventsHandler(broadcaster, testLogger()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/"+id.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, id.String())

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(events.Channel(id.String()))[events.Channel(id.String())] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, broadcaster.Publish(ctx, id, events.EventTypeChoicePresented, map[string]any{"choices_remaining": 5}))

	name, data = readEvent()
	assert.Equal(t, string(events.EventTypeChoicePresented), name)
	assert.JSONEq(t, `{"choices_remaining":5}`, data)
}
