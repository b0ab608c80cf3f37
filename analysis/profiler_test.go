package analysis

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestClock_MockAdvance_TimestampsFollowClock(t *testing.T) {
	// GIVEN a clock driven by a mock source
	mock := clock.NewMock()
	c := NewClockFrom(mock)

	// WHEN the source advances between samples
	t0 := c.Now()
	mock.Add(25 * time.Nanosecond)
	t1 := c.Now()
	mock.Add(time.Microsecond)
	t2 := c.Now()

	// THEN timestamps are offsets from the epoch
	assert.Equal(t, Timestamp(0), t0)
	assert.Equal(t, Timestamp(25), t1)
	assert.Equal(t, Timestamp(1025), t2)
}

func TestClock_RealSource_NonDecreasing(t *testing.T) {
	c := NewClock()
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		_, ok := now.Since(prev)
		assert.True(t, ok, "real clock went backwards at iteration %d", i)
		prev = now
	}
}

func TestTimestamp_Since_FailsWhenEarlierIsLater(t *testing.T) {
	d, ok := Timestamp(30).Since(10)
	assert.True(t, ok)
	assert.Equal(t, 20*time.Nanosecond, d)

	d, ok = Timestamp(10).Since(30)
	assert.False(t, ok)
	assert.Zero(t, d)

	d, ok = Timestamp(10).Since(10)
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestTimestamp_Sub_CanBeNegative(t *testing.T) {
	assert.Equal(t, -5*time.Nanosecond, Timestamp(5).Sub(10))
	assert.Equal(t, "42ns", Timestamp(42).String())
}
