package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Millisecond
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 4 * time.Millisecond
	}
	q := New(opts)
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(100*time.Millisecond, time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 5})

	var calls atomic.Int32
	ticket, err := q.Submit("merge tag", func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("remote unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)

	require.NoError(t, ticket.Wait(waitCtx(t)))
	assert.Equal(t, 3, ticket.Attempts())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3})
	boom := errors.New("still failing")

	var calls atomic.Int32
	ticket, err := q.Submit("merge category", func(context.Context) error {
		calls.Add(1)
		return boom
	})
	require.NoError(t, err)

	assert.ErrorIs(t, ticket.Wait(waitCtx(t)), boom)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_PermanentErrorStops(t *testing.T) {
	permanent := errors.New("source is gone")
	q := newTestQueue(t, Options{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	})

	ticket, err := q.Submit("merge creator", func(context.Context) error { return permanent })
	require.NoError(t, err)

	assert.ErrorIs(t, ticket.Wait(waitCtx(t)), permanent)
	assert.Equal(t, 1, ticket.Attempts())
}

func TestQueue_RunsJobsIndependently(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 2})

	ok, err := q.Submit("ok", func(context.Context) error { return nil })
	require.NoError(t, err)
	bad, err := q.Submit("bad", func(context.Context) error { return errors.New("nope") })
	require.NoError(t, err)

	ctx := waitCtx(t)
	assert.NoError(t, ok.Wait(ctx))
	assert.Error(t, bad.Wait(ctx))
	assert.Equal(t, 2, bad.Attempts())
}

func TestQueue_ShutdownFailsPendingJobs(t *testing.T) {
	q := New(Options{BaseDelay: time.Hour, MaxDelay: time.Hour})
	q.Start(context.Background())

	ticket, err := q.Submit("slow", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, q.Pending())

	require.NoError(t, q.Shutdown(waitCtx(t)))
	assert.ErrorIs(t, ticket.Wait(waitCtx(t)), ErrClosed)

	_, err = q.Submit("late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_ShutdownWithoutStart(t *testing.T) {
	q := New(Options{})
	assert.NoError(t, q.Shutdown(waitCtx(t)))
	assert.NoError(t, q.Shutdown(waitCtx(t)))
}
