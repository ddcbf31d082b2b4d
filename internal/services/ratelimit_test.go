package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/pkg/chat"
)

func TestRateLimitedService_PassesThrough(t *testing.T) {
	mock := NewMockLLMAPI()
	svc := NewRateLimitedService(mock, 100, 2)

	require.NoError(t, svc.InitModel(context.Background(), "m"))
	_, err := svc.Chat(context.Background(), []chat.ChatMessage{chat.User("hi")})
	require.NoError(t, err)

	initCalls, chatCalls := mock.GetCalls()
	assert.Equal(t, []string{"m"}, initCalls)
	assert.Len(t, chatCalls, 1)
}

func TestRateLimitedService_WaitHonoursContext(t *testing.T) {
	mock := NewMockLLMAPI()
	svc := NewRateLimitedService(mock, 0.001, 1)

	_, err := svc.Chat(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Chat(ctx, nil)
	assert.Error(t, err)

	_, chatCalls := mock.GetCalls()
	assert.Len(t, chatCalls, 1)
}
