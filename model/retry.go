package model

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// Timeouts is the per-call timeout contract external completions run under.
type Timeouts struct {
	// Connect bounds TCP/TLS establishment.
	Connect time.Duration
	// FirstPacket bounds the wait for the first response byte.
	FirstPacket time.Duration
	// Read bounds a single blocking read on a streaming response.
	Read time.Duration
	// Total bounds the whole call including retries.
	Total time.Duration
}

// DefaultTimeouts returns the standard external-call timeout contract.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:     5 * time.Second,
		FirstPacket: 10 * time.Second,
		Read:        60 * time.Second,
		Total:       120 * time.Second,
	}
}

// ErrReadTimeout reports that a streaming response stalled: no chunk arrived
// within the Read timeout.
var ErrReadTimeout = errors.New("model: streaming read timed out")

// ReadGuard is the live half of WatchReads. Touch resets the stall timer on
// every received chunk; Stop releases the guard once the stream ends.
type ReadGuard struct {
	timer  *time.Timer
	read   time.Duration
	cancel context.CancelCauseFunc
}

// WatchReads derives a context that is cancelled with ErrReadTimeout when no
// chunk arrives within read. A read of zero disables the watchdog and the
// parent context is returned unchanged. The caller must Stop the guard.
func WatchReads(ctx context.Context, read time.Duration) (context.Context, *ReadGuard) {
	if read <= 0 {
		return ctx, &ReadGuard{}
	}
	guarded, cancel := context.WithCancelCause(ctx)
	g := &ReadGuard{read: read, cancel: cancel}
	g.timer = time.AfterFunc(read, func() { cancel(ErrReadTimeout) })
	return guarded, g
}

// Touch marks a chunk as received, pushing the deadline out by Read.
func (g *ReadGuard) Touch() {
	if g.timer != nil {
		g.timer.Reset(g.read)
	}
}

// Stop releases the watchdog. Safe to call after expiry.
func (g *ReadGuard) Stop() {
	if g.timer != nil {
		g.timer.Stop()
		g.cancel(nil)
	}
}

// RetryPolicy bounds retries of a failed external call.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt with
	// jitter in [0.5x, 1x).
	BackoffBase time.Duration
}

// DefaultRetryPolicy returns the standard retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		BackoffBase: 500 * time.Millisecond,
	}
}

// Do runs fn under the policy, retrying failures that retryable accepts.
// The last error is returned once attempts are exhausted; context
// cancellation stops retrying immediately.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(jitteredBackoff(p.BackoffBase, attempt-1)):
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || retryable == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// jitteredBackoff returns base*2^attempt scaled by a random factor in
// [0.5, 1) so concurrent retries do not synchronize.
func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	return time.Duration(float64(d) * (0.5 + rand.Float64()/2))
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// rate limiting and transient server-side failures.
func RetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// RetryableTransport reports whether err is a transport-level failure worth
// retrying, e.g. a dial or read timeout. Context cancellation is not
// retryable; the caller gave up.
func RetryableTransport(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrReadTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func joinErrs(errs []error) error { return errors.Join(errs...) }
