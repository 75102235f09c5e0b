package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedDelayRetryer(t *testing.T) {
	r := NewFixedDelayRetryer(3*time.Second, 0)
	for attempt := 0; attempt < 100; attempt++ {
		delay, ok := r.NextDelay(attempt, nil)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, delay)
	}

	capped := NewFixedDelayRetryer(time.Second, 2)
	_, ok := capped.NextDelay(1, nil)
	assert.True(t, ok)
	_, ok = capped.NextDelay(2, nil)
	assert.False(t, ok)
}

func TestExponentialBackoffRetryer(t *testing.T) {
	r := NewExponentialBackoffRetryer()
	r.Jitter = false

	d0, ok := r.NextDelay(0, nil)
	require.True(t, ok)
	assert.Equal(t, 1*time.Second, d0)

	d2, ok := r.NextDelay(2, nil)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, d2)

	// Growth is capped at MaxDelay.
	dBig, ok := r.NextDelay(20, nil)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, dBig)
}

func TestExponentialBackoffRetryerJitterBounds(t *testing.T) {
	r := NewExponentialBackoffRetryer()
	for i := 0; i < 50; i++ {
		delay, ok := r.NextDelay(0, nil)
		require.True(t, ok)
		assert.GreaterOrEqual(t, delay, 700*time.Millisecond)
		assert.LessOrEqual(t, delay, 1300*time.Millisecond)
	}
}

func TestExponentialBackoffRetryerMaxRetries(t *testing.T) {
	r := NewExponentialBackoffRetryer()
	r.MaxRetries = 3
	_, ok := r.NextDelay(3, nil)
	assert.False(t, ok)
}
