package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
)

func TestNormalizeChoice(t *testing.T) {
	tests := map[string]string{
		"1":               "A",
		"b":               "B",
		" C ":             "C",
		"3":               "C",
		"Call out boldly": "Call out boldly",
		"4":               "4",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeChoice(in), in)
	}
}

func TestDescribeEvent(t *testing.T) {
	assert.Equal(t, "image generated_scene_1.png", describeEvent(SSEEvent{
		Type: "media.ready",
		Data: map[string]interface{}{"kind": "image", "status": "ok", "asset": "generated_scene_1.png"},
	}))
	assert.Equal(t, "video timeout", describeEvent(SSEEvent{
		Type: "media.failed",
		Data: map[string]interface{}{"kind": "video", "status": "timeout"},
	}))
	assert.Equal(t, "choice_presented", describeEvent(SSEEvent{Type: "story.choice_presented"}))
}

func TestFormatArchive(t *testing.T) {
	assert.Equal(t, "No finished adventures yet.", formatArchive(nil))

	out := formatArchive([]orchestrator.ArchiveEntry{{
		AdventureID: "0f8fad5b-d9cb-469f-a165-70867728950e",
		Title:       "Neon Shadows",
		StoryType:   "cyberpunk",
		ExportedAt:  time.Date(2087, 3, 4, 5, 6, 0, 0, time.Local),
	}})
	assert.Contains(t, out, "Finished adventures (1):")
	assert.Contains(t, out, "0f8fad5b  Neon Shadows [cyberpunk] Mar 4 05:06")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0f8fad5b", shortID("0f8fad5b-d9cb"))
}
