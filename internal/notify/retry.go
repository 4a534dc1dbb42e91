package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RateLimit reports whether err is a platform rate-limit response and the
// wait the platform asked for, zero when it sent no hint.
type RateLimit func(err error) (wait time.Duration, limited bool)

// Backoff retries rate-limited sends with a doubling delay capped at Max.
type Backoff struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
}

// DefaultBackoff is what the chat adapters use outside tests.
var DefaultBackoff = Backoff{Retries: 3, Base: time.Second, Max: 2 * time.Minute}

// Delay is the wait before retry number attempt (0-based). A platform hint
// wins over the computed delay.
func (b Backoff) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

// Do calls fn until it succeeds, fails with an error limited does not
// recognise, or the retries run out. The last error is returned as is.
func (b Backoff) Do(ctx context.Context, logger *zap.Logger, limited RateLimit, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		hint, ok := limited(err)
		if !ok || attempt >= b.Retries {
			return err
		}

		wait := b.Delay(attempt, hint)
		if logger != nil {
			logger.Warn("rate limited", zap.Int("attempt", attempt+1), zap.Duration("retry_in", wait))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
