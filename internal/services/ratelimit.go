package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Abdullah0x0/dreamdirector/pkg/chat"
)

// RateLimitedService throttles calls to an underlying LLMService.
type RateLimitedService struct {
	next    LLMService
	limiter *rate.Limiter
}

var _ LLMService = (*RateLimitedService)(nil)

// NewRateLimitedService allows rps requests per second with the given burst.
func NewRateLimitedService(next LLMService, rps float64, burst int) *RateLimitedService {
	return &RateLimitedService{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedService) InitModel(ctx context.Context, modelName string) error {
	return r.next.InitModel(ctx, modelName)
}

func (r *RateLimitedService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Chat(ctx, messages)
}
