package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatRateLimiter_BlocksBeyondLimitPerSession(t *testing.T) {
	req := require.New(t)
	rl := NewChatRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		req.True(rl.Allow("a"))
	}
	req.False(rl.Allow("a"))

	// Sessions are limited independently.
	req.True(rl.Allow("b"))
}

func TestChatRateLimiter_WindowSlides(t *testing.T) {
	req := require.New(t)
	rl := NewChatRateLimiter(2, 30*time.Millisecond)

	req.True(rl.Allow("a"))
	req.True(rl.Allow("a"))
	req.False(rl.Allow("a"))

	time.Sleep(50 * time.Millisecond)
	req.True(rl.Allow("a"))
}
