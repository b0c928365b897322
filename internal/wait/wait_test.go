package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilImmediate(t *testing.T) {
	ok, err := Until(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUntilEventually(t *testing.T) {
	var calls atomic.Int32
	ok, err := Until(context.Background(), time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
		if calls.Add(1) < 3 {
			return false, errors.New("not rendered")
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUntilTimeoutIsNotAnError(t *testing.T) {
	start := time.Now()
	ok, err := Until(context.Background(), 30*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := Until(ctx, time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
