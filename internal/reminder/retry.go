package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds delivery attempts for a single reminder.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration // per attempt
}

// DefaultRetryPolicy is used for zero fields of a configured policy.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: time.Second,
	MaxBackoff:     10 * time.Second,
	Timeout:        10 * time.Second,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	return p
}

func (p RetryPolicy) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// send delivers text with rate limiting, a per-attempt timeout and
// exponential backoff between attempts. Only failures known to happen before
// delivery are retried.
func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) error {
	p := d.cfg.Retry.withDefaults()
	attempt := 0
	op := func() error {
		attempt++
		if err := d.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		err := d.sender.SendMessage(actx, chatID, text)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrUndeliverable), errors.Is(err, ErrUncertain):
			return backoff.Permanent(err)
		case actx.Err() != nil:
			// The attempt ran out of time after the request went out.
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrUncertain, err))
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		d.log.Sugar().Debugw("send attempt failed",
			"chatID", chatID, "attempt", attempt, "retryIn", wait, "error", err)
	}
	return backoff.RetryNotify(op, p.backoff(ctx), notify)
}
