package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLimited = errors.New("429")

func limitedWith(hint time.Duration) RateLimit {
	return func(err error) (time.Duration, bool) {
		return hint, errors.Is(err, errLimited)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Retries: 5, Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.Delay(0, 0))
	assert.Equal(t, 20*time.Millisecond, b.Delay(1, 0))
	assert.Equal(t, 40*time.Millisecond, b.Delay(2, 0))
	assert.Equal(t, 50*time.Millisecond, b.Delay(3, 0))
	assert.Equal(t, 50*time.Millisecond, b.Delay(62, 0), "overflow is capped")
	assert.Equal(t, 3*time.Millisecond, b.Delay(2, 3*time.Millisecond), "platform hint wins")
}

func TestBackoff_RetriesUntilSuccess(t *testing.T) {
	b := Backoff{Retries: 3, Base: time.Millisecond, Max: time.Millisecond}
	calls := 0
	err := b.Do(context.Background(), nil, limitedWith(0), func() error {
		calls++
		if calls < 3 {
			return errLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoff_ExhaustsRetries(t *testing.T) {
	b := Backoff{Retries: 3, Base: time.Millisecond, Max: time.Millisecond}
	calls := 0
	err := b.Do(context.Background(), nil, limitedWith(0), func() error {
		calls++
		return errLimited
	})
	assert.ErrorIs(t, err, errLimited)
	assert.Equal(t, 4, calls)
}

func TestBackoff_OtherErrorsReturnImmediately(t *testing.T) {
	b := Backoff{Retries: 3, Base: time.Millisecond}
	boom := errors.New("forbidden")
	calls := 0
	err := b.Do(context.Background(), nil, limitedWith(0), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := Backoff{Retries: 3, Base: time.Hour}
	calls := 0
	err := b.Do(ctx, nil, limitedWith(time.Hour), func() error {
		calls++
		return errLimited
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
