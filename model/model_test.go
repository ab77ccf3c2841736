package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBackendComplete(t *testing.T) {
	b := NewMockBackend()
	b.AddResponse("status?", "all good")

	got, err := b.Complete(context.Background(), []Message{
		SystemMessage("you are terse"),
		UserMessage("status?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "all good", got)

	got, err = b.Complete(context.Background(), []Message{UserMessage("unscripted")})
	require.NoError(t, err)
	assert.Contains(t, got, "unscripted")
	assert.Equal(t, 2, b.Calls())
}

func TestMockBackendCompleteAll(t *testing.T) {
	b := NewMockBackend()
	b.AddResponse("one", "1")
	b.AddResponse("two", "2")

	got, err := b.CompleteAll(context.Background(), [][]Message{
		{UserMessage("one")},
		{UserMessage("two")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got)
}

func TestCompleteAllKeepsOrderAndJoinsErrors(t *testing.T) {
	b := NewMockBackend()
	boom := errors.New("boom")
	b.FailNext(boom)

	got, err := b.CompleteAll(context.Background(), [][]Message{
		{UserMessage("a")},
		{UserMessage("b")},
		{UserMessage("c")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Exactly one slot failed; the others kept their results in order.
	require.Len(t, got, 3)
	empty := 0
	for _, s := range got {
		if s == "" {
			empty++
		}
	}
	assert.Equal(t, 1, empty)
}

func TestMockBackendStream(t *testing.T) {
	b := NewMockBackend()
	b.AddResponse("go", "abc")

	chunks, errCh := b.Stream(context.Background(), []Message{UserMessage("go")})

	var partials []string
	var final string
	for ck := range chunks {
		if ck.Done {
			final = ck.Text
			continue
		}
		partials = append(partials, ck.Text)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "abc", final)
	assert.Equal(t, "abc", strings.Join(partials, ""))
}

func TestRetryPolicyRetriesThenSucceeds(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, BackoffBase: time.Millisecond}
	fatal := errors.New("bad request")

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}
	transient := errors.New("still down")

	calls := 0
	err := p.Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyHonorsCancellation(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BackoffBase: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestRetryableTransport(t *testing.T) {
	assert.True(t, RetryableTransport(context.DeadlineExceeded))
	assert.True(t, RetryableTransport(ErrReadTimeout))
	assert.False(t, RetryableTransport(context.Canceled))
	assert.False(t, RetryableTransport(errors.New("parse error")))
}

func TestWatchReadsCancelsStalledStream(t *testing.T) {
	ctx, guard := WatchReads(context.Background(), 20*time.Millisecond)
	defer guard.Stop()

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, context.Cause(ctx), ErrReadTimeout)
	case <-time.After(time.Second):
		t.Fatal("stalled stream was never cancelled")
	}
}

func TestWatchReadsTouchKeepsStreamAlive(t *testing.T) {
	ctx, guard := WatchReads(context.Background(), 40*time.Millisecond)
	defer guard.Stop()

	// Chunks arriving within the read window keep pushing the deadline out.
	for range 5 {
		time.Sleep(10 * time.Millisecond)
		guard.Touch()
		require.NoError(t, ctx.Err())
	}
}

func TestWatchReadsZeroDisablesWatchdog(t *testing.T) {
	parent := context.Background()
	ctx, guard := WatchReads(parent, 0)
	defer guard.Stop()

	assert.Equal(t, parent, ctx)
	guard.Touch()
}

func TestWatchReadsStopReleasesGuard(t *testing.T) {
	ctx, guard := WatchReads(context.Background(), 10*time.Millisecond)
	guard.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.NotErrorIs(t, context.Cause(ctx), ErrReadTimeout)
}
