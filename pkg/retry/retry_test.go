package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/pkg/retry"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	lastErr := errors.New("still down")
	attempts := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		attempts++
		return lastErr
	})
	require.ErrorIs(t, err, lastErr)
	require.Equal(t, 3, attempts)
}

func TestDo_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := retry.Do(ctx, fastConfig(), func() error {
		attempts++
		return errors.New("never reached")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, attempts)
}
