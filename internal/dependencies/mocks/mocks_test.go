package mocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockFiresDueTimers(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "b") })
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "c") })

	c.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "c"}, fired)
	assert.Equal(t, 0, c.PendingTimers())
}

func TestMockRandomFallsBackToZeros(t *testing.T) {
	r := NewMockRandom()
	r.QueueDigits("987", "12")

	assert.Equal(t, "987", r.Digits(3))
	assert.Equal(t, 1, r.Pending())
	assert.Equal(t, "12", r.Digits(4))
	assert.Equal(t, "0000", r.Digits(4))
}
