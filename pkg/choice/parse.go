package choice

import (
	"errors"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

// ErrPartialParse is returned alongside a ChoiceSet when at least one
// label was missing from the collaborator's response.
var ErrPartialParse = errors.New("choice response missing labels")

// ParseChoices scans text line by line for options labeled "A:", "B:" and
// "C:". Prefixes are case-sensitive and matched after trimming the line.
// A later line with the same label replaces an earlier one. Missing labels
// are left empty and reported with ErrPartialParse.
func ParseChoices(text string) (story.ChoiceSet, error) {
	var set story.ChoiceSet
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "A:"):
			set.A = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "B:"):
			set.B = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "C:"):
			set.C = strings.TrimSpace(line[2:])
		}
	}

	if !set.Complete() {
		return set, ErrPartialParse
	}
	return set, nil
}
