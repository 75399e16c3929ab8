package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	t.Run("returns immediately when the condition already holds", func(t *testing.T) {
		calls := 0
		waited, err := Poll(context.Background(), time.Second, 50*time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
		require.Less(t, waited, 50*time.Millisecond)
	})

	t.Run("keeps probing until the condition holds", func(t *testing.T) {
		calls := 0
		_, err := Poll(context.Background(), time.Second, 10*time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("times out within one interval of the deadline", func(t *testing.T) {
		timeout := 300 * time.Millisecond
		interval := 100 * time.Millisecond
		waited, err := Poll(context.Background(), timeout, interval, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, ErrPollTimeout)
		require.GreaterOrEqual(t, waited, timeout)
		require.Less(t, waited, timeout+interval)
	})

	t.Run("stops on condition errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Poll(context.Background(), time.Second, 10*time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(30*time.Millisecond, cancel)
		waited, err := Poll(ctx, 5*time.Second, 10*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, waited, time.Second)
	})

	t.Run("probes once with a zero timeout", func(t *testing.T) {
		calls := 0
		_, err := Poll(context.Background(), 0, 10*time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return false, nil
		})
		require.ErrorIs(t, err, ErrPollTimeout)
		require.Equal(t, 1, calls)
	})
}
