package choice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abdullah0x0/dreamdirector/pkg/chat"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
	"github.com/Abdullah0x0/dreamdirector/pkg/textfilter"
)

const DefaultTimeout = 30 * time.Second

// TextGenerator is the text-generation collaborator.
type TextGenerator interface {
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

// Orchestrator asks the text collaborator for choice options and choice
// consequences. It implements story.ChoiceSource.
type Orchestrator struct {
	llm     TextGenerator
	filter  *textfilter.Filter
	timeout time.Duration
	logger  *slog.Logger
}

var _ story.ChoiceSource = (*Orchestrator)(nil)

type Option func(*Orchestrator)

func WithFilter(f *textfilter.Filter) Option {
	return func(o *Orchestrator) {
		o.filter = f
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func NewOrchestrator(llm TextGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:     llm,
		filter:  textfilter.New(""),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateChoices returns the parsed options. A partial set comes back with
// ErrPartialParse; a provider failure returns an empty set.
func (o *Orchestrator) GenerateChoices(ctx context.Context, cc story.ChoiceContext) (story.ChoiceSet, error) {
	text, err := o.complete(ctx, ChoiceMessages(cc))
	if err != nil {
		o.logger.Warn("Choice generation failed", "error", err, "adventure_id", cc.AdventureID.String())
		return story.ChoiceSet{}, err
	}

	set, err := ParseChoices(text)
	set.A = o.filter.Clean(set.A)
	set.B = o.filter.Clean(set.B)
	set.C = o.filter.Clean(set.C)
	if errors.Is(err, ErrPartialParse) {
		o.logger.Warn("Choice response partially parsed",
			"adventure_id", cc.AdventureID.String(),
			"has_a", set.A != "",
			"has_b", set.B != "",
			"has_c", set.C != "")
	}
	return set, err
}

// GenerateConsequence returns the cleaned consequence narrative.
func (o *Orchestrator) GenerateConsequence(ctx context.Context, rc story.ResolutionContext) (string, error) {
	text, err := o.complete(ctx, ResolutionMessages(rc))
	if err != nil {
		o.logger.Warn("Consequence generation failed", "error", err, "adventure_id", rc.AdventureID.String())
		return "", err
	}
	return o.filter.Clean(text), nil
}

func (o *Orchestrator) complete(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	if resp == nil || resp.Message == "" {
		return "", fmt.Errorf("text generation returned no content")
	}
	return resp.Message, nil
}
