package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// Task is the work executed on every poll.
type Task func(ctx context.Context) error

type refreshRequest struct {
	ctx   context.Context
	reply chan error
}

// Poller runs a Task on a jittered schedule with exponential backoff.
//
// Each cycle waits current*(1+jitter), with jitter re-rolled in
// [0, maxJitter). A success resets the interval to the base; a failure
// doubles it up to min(base*10, maxInterval).
type Poller struct {
	task      Task
	base      time.Duration
	absMax    time.Duration
	maxJitter float64
	random    func() float64
	onError   func(error)
	observer  func(error, time.Duration)
	logger    *slog.Logger

	mu       sync.Mutex
	current  time.Duration
	failures int
	running  bool
	cancel   context.CancelFunc
	refresh  chan refreshRequest
	done     chan struct{}

	runMu sync.Mutex
}

// New creates a stopped poller for task.
func New(task Task, opts ...Option) *Poller {
	p := &Poller{
		task:      task,
		base:      DefaultInterval,
		absMax:    DefaultMaxInterval,
		maxJitter: DefaultMaxJitter,
		random:    rand.Float64,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.current = p.base
	p.logger = p.logger.With(logger.Component("poller"))
	return p
}

// Start launches the polling loop. The loop ends when ctx is done or Stop
// is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.refresh = make(chan refreshRequest)
	p.done = make(chan struct{})

	go p.loop(ctx, p.refresh, p.done)
	return nil
}

// Stop ends the loop and waits for an in-flight poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshNow runs the task immediately and returns its error. When the loop
// is running the pending wait is cancelled and a fresh one starts after the
// task completes.
func (p *Poller) RefreshNow(ctx context.Context) error {
	p.mu.Lock()
	running, refresh, done := p.running, p.refresh, p.done
	p.mu.Unlock()

	if !running {
		p.runMu.Lock()
		defer p.runMu.Unlock()
		return p.execute(ctx)
	}

	req := refreshRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case refresh <- req:
	case <-done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentInterval returns the interval before jitter.
func (p *Poller) CurrentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Failures returns the number of consecutive failed polls.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// NextWait returns the jittered wait for the next cycle.
func (p *Poller) NextWait() time.Duration {
	jitter := p.random() * p.maxJitter
	return time.Duration(float64(p.CurrentInterval()) * (1 + jitter))
}

func (p *Poller) loop(ctx context.Context, refresh <-chan refreshRequest, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(done)
	}()

	timer := time.NewTimer(p.NextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_ = p.execute(ctx)
		case req := <-refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			req.reply <- p.execute(req.ctx)
		}
		timer.Reset(p.NextWait())
	}
}

// execute runs the task and updates the backoff state. Errors never
// escape to the loop.
func (p *Poller) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(ErrTaskPanicked, fmt.Errorf("%v", r))
		}
		p.record(err)
	}()
	return p.task(ctx)
}

func (p *Poller) record(err error) {
	p.mu.Lock()
	if err == nil {
		p.current = p.base
		p.failures = 0
	} else {
		p.failures++
		p.current = min(p.current*2, p.ceiling())
	}
	next, failures := p.current, p.failures
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("poll failed",
			logger.Error(err),
			logger.Count("failures", failures),
			logger.Interval(next),
		)
		if p.onError != nil {
			p.onError(err)
		}
	}
	if p.observer != nil {
		p.observer(err, next)
	}
}

func (p *Poller) ceiling() time.Duration {
	return max(min(p.base*backoffCeiling, p.absMax), p.base)
}
