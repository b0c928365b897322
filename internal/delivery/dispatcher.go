package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ramkansal/taglift/internal/wait"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Enqueue after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Poster makes a single delivery attempt.
type Poster interface {
	Post(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta RequestMeta) (*Response, error)
}

// Job is one fire-and-forget delivery.
type Job struct {
	Record      *plugin.ProfileRecord
	Credentials plugin.Credentials
	Meta        RequestMeta

	// OnDone, if set, is called with the job's outcome before listeners.
	OnDone func(Outcome)
}

// Outcome reports how a Job ended.
type Outcome struct {
	Job          Job
	Response     *Response
	Err          error
	AuthRejected bool
}

// Dispatcher runs deliveries in the background so the extraction flow
// returns immediately. Completions are published to listeners and to the
// Outcomes channel.
type Dispatcher struct {
	poster   Poster
	delay    time.Duration
	pool     *pool.Pool
	outcomes chan Outcome
	logger   *zap.Logger

	mu        sync.Mutex
	listeners []func(Outcome)
	closed    bool
}

// NewDispatcher creates a dispatcher that waits delay before each attempt.
func NewDispatcher(poster Poster, delay time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		poster:   poster,
		delay:    delay,
		pool:     pool.New(),
		outcomes: make(chan Outcome, 100),
		logger:   logger,
	}
}

// OnOutcome registers fn to be called after every job completes.
func (d *Dispatcher) OnOutcome(fn func(Outcome)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Outcomes returns the completion channel. Outcomes are dropped when nobody
// drains it.
func (d *Dispatcher) Outcomes() <-chan Outcome {
	return d.outcomes
}

// Enqueue schedules job and returns without waiting for it. The job is not
// bound to ctx's cancellation.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	ctx = context.WithoutCancel(ctx)
	d.pool.Go(func() {
		d.run(ctx, job)
	})
	return nil
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	_ = wait.Sleep(ctx, d.delay)

	resp, err := d.poster.Post(ctx, job.Record, job.Credentials, job.Meta)
	out := Outcome{
		Job:          job,
		Response:     resp,
		Err:          err,
		AuthRejected: apperrors.HasCode(err, apperrors.CodeAuthRejected),
	}

	if err != nil {
		d.logger.Warn("Background delivery failed",
			zap.String("profile_url", job.Record.ProfileURL),
			zap.Bool("auth_rejected", out.AuthRejected),
			zap.Error(err))
	} else {
		d.logger.Info("Profile saved to server", zap.String("profile_url", job.Record.ProfileURL))
	}

	if job.OnDone != nil {
		job.OnDone(out)
	}
	d.publish(out)
}

func (d *Dispatcher) publish(out Outcome) {
	d.mu.Lock()
	listeners := append([]func(Outcome){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(out)
	}

	select {
	case d.outcomes <- out:
	default:
		// Drop if nobody is reading; listeners already saw it
	}
}

// Close stops accepting jobs and waits for in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.pool.Wait()
}
