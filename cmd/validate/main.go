package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <content.yaml> [story request ...]\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &ContentValidator{}

	content, err := validator.validateFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Content file is valid!")

	// Any further arguments are sample requests; show which template each
	// one would start.
	for _, request := range os.Args[2:] {
		s := content.MatchScenario(request)
		fmt.Printf("  %q -> %s (%s)\n", request, s.Key, s.Title)
	}
}

type ContentValidator struct {
	errors []string
}

func (v *ContentValidator) validateFile(filename string) (*story.Content, error) {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("content file must have .yaml extension: %s", baseName)
	}

	content, err := story.LoadContent(filename)
	if err != nil {
		return nil, err
	}

	v.errors = nil
	v.validateContent(content)
	if len(v.errors) > 0 {
		return nil, fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return content, nil
}

func (v *ContentValidator) validateContent(c *story.Content) {
	for _, s := range c.Scenarios {
		v.validateIDFormat("scenario key", s.Key)
		for _, kw := range s.Keywords {
			if kw != strings.ToLower(kw) {
				v.addError(fmt.Sprintf("scenario %s keyword '%s' must be lowercase", s.Key, kw))
			}
		}
	}
	v.validateIDFormat("custom scenario key", c.Custom.Key)

	for _, f := range c.Families {
		v.validateIDFormat("family name", f.Name)
		for i, b := range f.Branches {
			if strings.TrimSpace(b.Narrative) != b.Narrative {
				v.addError(fmt.Sprintf("family %s branch %d narrative has surrounding whitespace", f.Name, i+1))
			}
		}
	}
}

func (v *ContentValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *ContentValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
