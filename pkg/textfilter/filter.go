package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps words that are softened for family ratings. Longer
// phrases come first so they win over their substrings.
var replacements = []struct {
	word        string
	replacement string
}{
	{"motherfucker", "mother-trucker"},
	{"goddamn", "gosh-dang"},
	{"bullshit", "baloney"},
	{"asshole", "jerk"},
	{"bastard", "jerk"},
	{"bitch", "jerk"},
	{"fuck", "fudge"},
	{"shit", "shoot"},
	{"damn", "dang"},
	{"hell", "heck"},
	{"crap", "crud"},
	{"piss", "ticked"},
	{"ass", "butt"},
}

var (
	emphasisPattern = regexp.MustCompile(`(\*\*|__|\*|` + "`" + `)`)
	headingPattern  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	spacePattern    = regexp.MustCompile(`[ \t]+`)
	blankPattern    = regexp.MustCompile(`\n{3,}`)
)

// Filter cleans collaborator text before it reaches the player.
type Filter struct {
	soften  bool
	regexes []*regexp.Regexp
	title   cases.Caser
}

// New returns a filter for the given content rating. G, PG and PG-13
// ratings soften profanity; anything else only strips formatting.
func New(rating string) *Filter {
	f := &Filter{
		soften: ShouldFilterContent(rating),
		title:  cases.Title(language.English),
	}
	for _, r := range replacements {
		f.regexes = append(f.regexes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(r.word)+`(e?s)?\b`))
	}
	return f
}

// Clean strips markdown emphasis and headings, collapses runs of spaces,
// trims the result, and softens profanity when the rating asks for it.
func (f *Filter) Clean(text string) string {
	text = headingPattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = blankPattern.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	if f.soften {
		text = f.Soften(text)
	}
	return text
}

// Soften replaces profanity with milder words, keeping the original casing
// and any plural suffix.
func (f *Filter) Soften(text string) string {
	for i, r := range replacements {
		replacement := r.replacement
		text = f.regexes[i].ReplaceAllStringFunc(text, func(match string) string {
			suffix := ""
			if len(match) > len(r.word) {
				suffix = match[len(r.word):]
				match = match[:len(r.word)]
			}
			return f.preserveCase(match, replacement) + suffix
		})
	}
	return text
}

// ContainsProfanity reports whether any softened word occurs in text.
func (f *Filter) ContainsProfanity(text string) bool {
	for _, re := range f.regexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (f *Filter) preserveCase(original, replacement string) string {
	switch {
	case original == "":
		return replacement
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return strings.ToLower(replacement)
	case f.title.String(strings.ToLower(original)) == original:
		return f.title.String(replacement)
	}

	orig := []rune(original)
	out := make([]rune, 0, len(replacement))
	for i, r := range []rune(replacement) {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out = append(out, unicode.ToUpper(r))
		} else {
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// ShouldFilterContent determines if content should be softened for a rating.
func ShouldFilterContent(rating string) bool {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}
