// Package outbox retries idempotent operations in the background with
// exponential backoff.
//
// A single worker goroutine runs due jobs one at a time. Jobs must be safe to
// re-run: the queue makes no attempt to resume a job from where it stopped.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/atomshelf/atomshelf-server/internal/id"
)

// ErrClosed is returned by Submit after Shutdown, and by Wait for jobs still
// pending when the queue shut down.
var ErrClosed = errors.New("outbox: closed")

// Func is one attempt of a job.
type Func func(ctx context.Context) error

// Options configures a Queue.
type Options struct {
	MaxAttempts int           // default 5
	BaseDelay   time.Duration // default 500ms
	MaxDelay    time.Duration // default 30s
	JitterFrac  float64       // default 0; fraction of the delay added or removed at random
	// Retryable reports whether a failed attempt should be retried.
	// Every error is retryable when nil.
	Retryable func(error) bool
	Logger    *slog.Logger
}

// Ticket tracks a submitted job.
type Ticket struct {
	ID   string
	Name string

	done     chan struct{}
	err      error
	attempts int
}

// Wait blocks until the job succeeds, gives up, or ctx ends.
// It returns nil on success and the last attempt's error otherwise.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the job is finished.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Attempts returns how many times the job ran. Valid after Done.
func (t *Ticket) Attempts() int {
	<-t.done
	return t.attempts
}

type job struct {
	ticket *Ticket
	run    Func
	due    time.Time
}

// Queue is a retry queue.
type Queue struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pending []*job
	closed  bool
	started bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a queue. Call Start to begin processing.
func New(opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Queue{
		opts:   opts,
		logger: opts.Logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the worker until ctx ends or Shutdown is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.run(ctx)
}

// Submit schedules run for a retry after the first backoff delay.
// The caller is expected to have made the first attempt itself.
func (q *Queue) Submit(name string, run Func) (*Ticket, error) {
	jobID, err := id.Generate(id.PrefixJob)
	if err != nil {
		return nil, err
	}
	t := &Ticket{ID: jobID, Name: name, done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.pending = append(q.pending, &job{ticket: t, run: run, due: time.Now().Add(q.delay(1))})
	q.mu.Unlock()

	q.logger.Info("outbox job queued", "job_id", t.ID, "job", name)
	q.signal()
	return t, nil
}

// Pending returns the number of jobs waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Shutdown stops the worker and fails every pending job with ErrClosed.
// It waits for a running attempt to return, or for ctx to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		started := q.started
		q.mu.Unlock()
		close(q.stop)
		if !started {
			close(q.done)
		}
	})

	select {
	case <-q.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.mu.Lock()
	left := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, j := range left {
		q.finish(j, ErrClosed)
	}
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if next, ok := q.nextDue(); ok {
			timer.Reset(max(time.Until(next), 0))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-q.wake:
			timer.Stop()
		case <-fire:
			q.runDue(ctx)
		}
	}
}

func (q *Queue) nextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return time.Time{}, false
	}
	next := q.pending[0].due
	for _, j := range q.pending[1:] {
		if j.due.Before(next) {
			next = j.due
		}
	}
	return next, true
}

// takeDue removes and returns the jobs whose due time has passed.
func (q *Queue) takeDue(now time.Time) []*job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*job
	kept := q.pending[:0]
	for _, j := range q.pending {
		if j.due.After(now) {
			kept = append(kept, j)
		} else {
			due = append(due, j)
		}
	}
	q.pending = kept
	return due
}

func (q *Queue) runDue(ctx context.Context) {
	for _, j := range q.takeDue(time.Now()) {
		j.ticket.attempts++
		err := j.run(ctx)
		log := q.logger.With("job_id", j.ticket.ID, "job", j.ticket.Name, "attempt", j.ticket.attempts)

		switch {
		case err == nil:
			log.Info("outbox job succeeded")
			q.finish(j, nil)
		case q.opts.Retryable != nil && !q.opts.Retryable(err):
			log.Warn("outbox job failed permanently", "error", err)
			q.finish(j, err)
		case j.ticket.attempts >= q.opts.MaxAttempts:
			log.Error("outbox job gave up", "error", err)
			q.finish(j, err)
		default:
			delay := q.delay(j.ticket.attempts + 1)
			log.Warn("outbox job failed, retrying", "error", err, "delay", delay)
			j.due = time.Now().Add(delay)
			q.requeue(j, err)
		}
	}
}

func (q *Queue) requeue(j *job, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.finish(j, err)
		return
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()
}

func (q *Queue) finish(j *job, err error) {
	j.ticket.err = err
	close(j.ticket.done)
}

func (q *Queue) delay(attempt int) time.Duration {
	d := Backoff(q.opts.BaseDelay, q.opts.MaxDelay, attempt)
	if q.opts.JitterFrac <= 0 {
		return d
	}
	delta := float64(d) * q.opts.JitterFrac
	low := max(float64(d)-delta, 0)
	return time.Duration(low + rand.Float64()*(float64(d)+delta-low))
}

// Backoff returns base doubled for every attempt after the first, capped at
// maxDelay. Attempts below 1 count as 1.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	attempt = max(attempt, 1)
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
