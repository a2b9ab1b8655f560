package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_DefaultStart(t *testing.T) {
	c := NewFakeClock(time.Time{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.Now())
}

func TestFakeClock_SleepAdvancesAndRecords(t *testing.T) {
	c := NewFakeClock(time.Time{})
	start := c.Now()

	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, c.Sleep(context.Background(), 3*time.Second))

	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, c.Sleeps())
	assert.Equal(t, 5*time.Second, c.Elapsed())
	assert.Equal(t, start.Add(5*time.Second), c.Now())
}

func TestFakeClock_SleepHonoursCancelledContext(t *testing.T) {
	c := NewFakeClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.Sleeps())
}

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClock(time.Time{})
	start := c.Now()
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
	assert.Zero(t, c.Elapsed())
}
