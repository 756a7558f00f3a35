package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdownRemaining(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCountdown(deadline)

	assert.Equal(t, 10*time.Minute, c.Remaining(deadline.Add(-10*time.Minute)))
	assert.Equal(t, time.Duration(0), c.Remaining(deadline))
	assert.Equal(t, time.Duration(0), c.Remaining(deadline.Add(time.Hour)))
}

func TestCountdownExpiresOnce(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCountdown(deadline)

	assert.False(t, c.Expired(deadline.Add(-time.Second)))
	assert.True(t, c.Expired(deadline))
	assert.False(t, c.Expired(deadline.Add(time.Second)))
	assert.False(t, c.Expired(deadline.Add(time.Hour)))
}

func TestZeroDeadlineNeverExpires(t *testing.T) {
	c := NewCountdown(time.Time{})

	now := time.Now()
	assert.Equal(t, time.Duration(0), c.Remaining(now))
	assert.False(t, c.Expired(now))
	assert.False(t, c.Expired(now.Add(1000*time.Hour)))
}
