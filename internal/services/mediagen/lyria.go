package mediagen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

const DefaultLyriaURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateMusic"

// MusicProvider streams raw PCM for a set of weighted prompts.
type MusicProvider interface {
	StreamPCM(ctx context.Context, prompts []WeightedPrompt, duration time.Duration) ([]byte, error)
}

// MusicConfig steers the realtime music session.
type MusicConfig struct {
	BPM         int     `json:"bpm"`
	Temperature float64 `json:"temperature"`
	Density     float64 `json:"density"`
	Brightness  float64 `json:"brightness"`
}

// DefaultMusicConfig is a slow, dark setting suited to background scoring.
var DefaultMusicConfig = MusicConfig{
	BPM:         80,
	Temperature: 1.0,
	Density:     0.5,
	Brightness:  0.3,
}

// LyriaClient runs realtime music sessions over a websocket.
type LyriaClient struct {
	apiKey string
	model  string
	url    string
	config MusicConfig
	dialer *websocket.Dialer
	logger *slog.Logger
}

var _ MusicProvider = (*LyriaClient)(nil)

func NewLyriaClient(apiKey, model, wsURL string, logger *slog.Logger) *LyriaClient {
	if wsURL == "" {
		wsURL = DefaultLyriaURL
	}
	return &LyriaClient{
		apiKey: apiKey,
		model:  model,
		url:    wsURL,
		config: DefaultMusicConfig,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		logger: logger,
	}
}

type lyriaSetup struct {
	Setup struct {
		Model string `json:"model"`
	} `json:"setup"`
}

type lyriaClientContent struct {
	ClientContent struct {
		WeightedPrompts []WeightedPrompt `json:"weightedPrompts"`
	} `json:"clientContent"`
}

type lyriaGenerationConfig struct {
	MusicGenerationConfig MusicConfig `json:"musicGenerationConfig"`
}

type lyriaPlayback struct {
	PlaybackControl string `json:"playbackControl"`
}

type lyriaServerMessage struct {
	ServerContent *struct {
		AudioChunks []struct {
			Data     string `json:"data"`
			MimeType string `json:"mimeType"`
		} `json:"audioChunks"`
	} `json:"serverContent,omitempty"`
	FilteredPrompt *struct {
		Text           string `json:"text"`
		FilteredReason string `json:"filteredReason"`
	} `json:"filteredPrompt,omitempty"`
}

// StreamPCM opens a session, starts playback, and collects audio until
// duration elapses, the context ends, or the server closes the session.
// It returns media.ErrNoFrames when nothing arrived.
func (c *LyriaClient) StreamPCM(ctx context.Context, prompts []WeightedPrompt, duration time.Duration) ([]byte, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid music endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial music session: %v", media.ErrProviderUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	var setup lyriaSetup
	setup.Setup.Model = c.model
	var content lyriaClientContent
	content.ClientContent.WeightedPrompts = prompts

	for _, msg := range []any{
		setup,
		content,
		lyriaGenerationConfig{MusicGenerationConfig: c.config},
		lyriaPlayback{PlaybackControl: "PLAY"},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("%w: configure music session: %v", media.ErrProviderUnavailable, err)
		}
	}

	deadline := time.Now().Add(duration)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var pcm bytes.Buffer
	frames := 0
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			break
		}

		var msg lyriaServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			default:
				c.logger.Debug("Music session read ended", "error", err)
			}
			break
		}

		if msg.FilteredPrompt != nil {
			c.logger.Warn("Music prompt filtered", "text", msg.FilteredPrompt.Text, "reason", msg.FilteredPrompt.FilteredReason)
		}
		if msg.ServerContent == nil {
			continue
		}
		for _, chunk := range msg.ServerContent.AudioChunks {
			data, err := base64.StdEncoding.DecodeString(chunk.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			pcm.Write(data)
			frames++
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	c.logger.Debug("Music session finished", "frames", frames, "bytes", pcm.Len())

	if frames == 0 {
		if ctx.Err() != nil {
			return nil, errors.Join(media.ErrNoFrames, ctx.Err())
		}
		return nil, media.ErrNoFrames
	}
	return pcm.Bytes(), nil
}
