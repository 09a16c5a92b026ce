package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConnectionRateLimiter(t *testing.T) {
	rl := NewConnectionRateLimiter(3)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.AllowConnection(userID), "connection %d should pass", i)
	}
	assert.False(t, rl.AllowConnection(userID))

	// Another user has their own budget.
	assert.True(t, rl.AllowConnection(uuid.New()))
}

func TestClientRateLimiter(t *testing.T) {
	rl := NewClientRateLimiter()

	for i := 0; i < DefaultFrameLimits.MaxTypingEvents; i++ {
		assert.True(t, rl.Allow("typing:start"))
	}
	assert.False(t, rl.Allow("typing:stop"))

	// Other frame budgets are independent.
	assert.True(t, rl.Allow("read"))
	assert.True(t, rl.Allow("ping"))

	// Unknown frames never pass.
	assert.False(t, rl.Allow("presence:update"))
}
