package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestBackoffDelay tests the exact backoff law: min(base * 2^n, max)
func TestBackoffDelay(t *testing.T) {
	base := 1 * time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
		{63, 30 * time.Second}, // doubling must not overflow into a negative delay
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.attempt, base, max), "attempt %d", tt.attempt)
	}
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "disconnected", stateDisconnected.String())
	assert.Equal(t, "connecting", stateConnecting.String())
	assert.Equal(t, "connected", stateConnected.String())
	assert.Equal(t, "giving_up", stateGivingUp.String())
}
