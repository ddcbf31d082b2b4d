package story

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// GenericFamily is the fallback family for scenes no keyword matches.
const GenericFamily = "generic"

// BranchesPerFamily is the number of continuation beats each family defines:
// one per resolved choice before the finale.
const BranchesPerFamily = 4

// Content holds the data-driven story material: scenario templates for
// Start and the per-family branch table used by ContinueNarrative.
type Content struct {
	Defaults  Defaults   `yaml:"defaults"`
	Scenarios []Scenario `yaml:"scenarios" validate:"required,min=1,dive"`
	Custom    Scenario   `yaml:"custom"`
	Families  []Family   `yaml:"families" validate:"required,min=1,dive"`
}

type Defaults struct {
	ArtStyle       string `yaml:"art_style" validate:"required"`
	ColorPalette   string `yaml:"color_palette" validate:"required"`
	OpeningMood    string `yaml:"opening_mood" validate:"required"`
	OpeningDetails string `yaml:"opening_details"`
	StartingDanger int    `yaml:"starting_danger" validate:"min=1,max=10"`
	TotalChoices   int    `yaml:"total_choices" validate:"min=1"`
}

// Scenario is an adventure template selected by keyword match on the
// player's request.
type Scenario struct {
	Key         string   `yaml:"key" json:"key" validate:"required"`
	Title       string   `yaml:"title" json:"title" validate:"required"`
	Keywords    []string `yaml:"keywords" json:"-"`
	Setting     string   `yaml:"setting" json:"setting" validate:"required"`
	Hook        string   `yaml:"hook" json:"hook" validate:"required"`
	Characters  []string `yaml:"characters" json:"characters"`
	VisualStyle string   `yaml:"visual_style" json:"visual_style" validate:"required"`
	MusicThemes []string `yaml:"music_themes" json:"music_themes"`
	Choices     []string `yaml:"choices" json:"choices" validate:"len=3,dive,required"`
}

// Family groups the continuation branches for one kind of scene.
type Family struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords"`
	Branches []Branch `yaml:"branches" validate:"len=4,dive"`
}

// Branch is the scene and passage reached after a given choice count.
type Branch struct {
	Scene     string `yaml:"scene" validate:"required"`
	Narrative string `yaml:"narrative" validate:"required"`
	Character string `yaml:"character,omitempty"`
}

// DefaultContent decodes the embedded content document.
func DefaultContent() (*Content, error) {
	return ParseContent(defaultContent)
}

// LoadContent reads a replacement content document from disk.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	return ParseContent(data)
}

// ParseContent decodes and validates a content document.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks struct constraints plus the cross-field rules: unique
// scenario keys and family names, keywords on every matchable entry, and a
// keyword-free generic family.
func (c *Content) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid content: %w", err)
	}

	var errs []error
	if c.Defaults.TotalChoices != BranchesPerFamily+1 {
		errs = append(errs, fmt.Errorf("total_choices must be %d to match the branch table, got %d", BranchesPerFamily+1, c.Defaults.TotalChoices))
	}

	seen := make(map[string]bool)
	for _, s := range c.Scenarios {
		if seen[s.Key] {
			errs = append(errs, fmt.Errorf("duplicate scenario key %q", s.Key))
		}
		seen[s.Key] = true
		if len(s.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("scenario %q has no keywords", s.Key))
		}
	}
	if seen[c.Custom.Key] {
		errs = append(errs, fmt.Errorf("custom scenario key %q collides with a template", c.Custom.Key))
	}

	families := make(map[string]bool)
	for _, f := range c.Families {
		if families[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate family %q", f.Name))
		}
		families[f.Name] = true
		if f.Name != GenericFamily && len(f.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("family %q has no keywords", f.Name))
		}
	}
	if !families[GenericFamily] {
		errs = append(errs, fmt.Errorf("content must define the %q family", GenericFamily))
	}

	return errors.Join(errs...)
}

// MatchScenario returns the first template whose keywords occur in the
// request, or the custom template expanded with the request text.
func (c *Content) MatchScenario(request string) Scenario {
	lower := strings.ToLower(request)
	for _, s := range c.Scenarios {
		if containsAny(lower, s.Keywords) {
			return s
		}
	}

	custom := c.Custom
	custom.Setting = expand(custom.Setting, request, "")
	custom.Hook = expand(custom.Hook, request, "")
	return custom
}

// ClassifyFamily returns the first family whose keywords occur in scene.
func (c *Content) ClassifyFamily(scene string) string {
	lower := strings.ToLower(scene)
	for _, f := range c.Families {
		if f.Name == GenericFamily {
			continue
		}
		if containsAny(lower, f.Keywords) {
			return f.Name
		}
	}
	return GenericFamily
}

// Branch returns the continuation reached after choicesMade choices in the
// given family. choicesMade is 1-based.
func (c *Content) Branch(family string, choicesMade int) (Branch, bool) {
	if choicesMade < 1 || choicesMade > BranchesPerFamily {
		return Branch{}, false
	}
	for _, f := range c.Families {
		if f.Name == family {
			return f.Branches[choicesMade-1], true
		}
	}
	return Branch{}, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func expand(tmpl, request, scene string) string {
	return strings.NewReplacer("{request}", request, "{scene}", scene).Replace(tmpl)
}
