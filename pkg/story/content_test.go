package story

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContent_Valid(t *testing.T) {
	c, err := DefaultContent()
	require.NoError(t, err)
	assert.Len(t, c.Scenarios, 3)
	assert.Equal(t, 5, c.Defaults.TotalChoices)
	for _, f := range c.Families {
		assert.Len(t, f.Branches, BranchesPerFamily, f.Name)
	}
}

func TestContent_MatchScenario(t *testing.T) {
	c, err := DefaultContent()
	require.NoError(t, err)

	tests := []struct {
		request string
		key     string
	}{
		{"A Cyberpunk thriller", "cyberpunk"},
		{"hard-boiled detective", "cyberpunk"},
		{"a detective hunting a dragon", "cyberpunk"},
		{"knights of the round table", "fantasy"},
		{"magic school", "mystical"},
		{"a dragon in the forest", "fantasy"},
		{"deep sea exploration", "adventure"},
		{"", "adventure"},
	}

	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			assert.Equal(t, tt.key, c.MatchScenario(tt.request).Key)
		})
	}
}

func TestContent_ClassifyFamily(t *testing.T) {
	c, err := DefaultContent()
	require.NoError(t, err)

	tests := []struct {
		scene  string
		family string
	}{
		{"Neo-Tokyo 2087: A rain-soaked metropolis where corporate zaibatsus control reality through neural implants", "cyberpunk"},
		{"The ruins of Atlantis", "atlantis"},
		{"An ancient forest where magic flows through twisted trees and glowing flowers", "forest"},
		{"The Shadowrealm where dark magic and light magic clash eternally", "forest"},
		{"The volcanic lair of an ancient dragon filled with treasures and dangerous magic", GenericFamily},
		{"A quiet harbor town", GenericFamily},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.family, c.ClassifyFamily(tt.scene), tt.scene)
	}
}

func TestContent_BranchBounds(t *testing.T) {
	c, err := DefaultContent()
	require.NoError(t, err)

	_, ok := c.Branch("forest", 0)
	assert.False(t, ok)
	_, ok = c.Branch("forest", 5)
	assert.False(t, ok)
	_, ok = c.Branch("nonexistent", 1)
	assert.False(t, ok)

	b, ok := c.Branch("atlantis", 2)
	require.True(t, ok)
	assert.Equal(t, "Tidal Guardian - Ancient Atlantean Protector", b.Character)
}

func TestParseContent_Invalid(t *testing.T) {
	valid := string(defaultContent)

	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "malformed yaml",
			content: "defaults: [",
			errText: "failed to parse content",
		},
		{
			name:    "missing generic family",
			content: strings.Replace(valid, "- name: generic", "- name: plain", 1),
			errText: `must define the "generic" family`,
		},
		{
			name:    "duplicate scenario key",
			content: strings.Replace(valid, "key: fantasy", "key: cyberpunk", 1),
			errText: "duplicate scenario key",
		},
		{
			name:    "wrong total choices",
			content: strings.Replace(valid, "total_choices: 5", "total_choices: 7", 1),
			errText: "total_choices must be 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContent([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content.yaml")
	require.NoError(t, os.WriteFile(path, defaultContent, 0o644))

	c, err := LoadContent(path)
	require.NoError(t, err)
	assert.Equal(t, "mysterious", c.Defaults.OpeningMood)

	_, err = LoadContent(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
