package feature

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// TrackerOptions configures batching and buffering of analytics events.
type TrackerOptions struct {
	BufferSize     int           // Max events queued in memory; further events are dropped
	BatchSize      int           // Events per storage write
	BatchTimeout   time.Duration // Max time a partial batch waits before flushing
	StorageTimeout time.Duration // Per-batch storage timeout
	Logger         *slog.Logger
}

// Tracker ships evaluation records to storage in the background.
// Track never blocks the evaluation path.
type Tracker struct {
	storage   Storage
	events    chan EvaluationRecord
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	options   TrackerOptions
	logger    *slog.Logger
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewTracker starts a tracker writing to storage.
func NewTracker(storage Storage, opts TrackerOptions) *Tracker {
	if storage == nil {
		panic("feature: tracker storage cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = time.Second
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	t := &Tracker{
		storage: storage,
		events:  make(chan EvaluationRecord, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
		logger:  logger.OrDefault(opts.Logger).With(logger.Component("tracker")),
	}

	t.wg.Add(1)
	go t.worker()

	return t
}

// Track queues a record. It returns false when the record was dropped
// because the buffer is full or the tracker is closed.
func (t *Tracker) Track(record EvaluationRecord) bool {
	if record.EventID == "" {
		record.EventID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	select {
	case <-t.done:
		return false
	default:
	}

	select {
	case t.events <- record:
		return true
	default:
		t.dropped.Add(1)
		t.logger.Warn("analytics buffer full, dropping evaluation event",
			logger.FlagKey(record.FlagKey),
			logger.Count("buffer_size", t.options.BufferSize),
		)
		return false
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Failed returns the number of events whose storage write failed.
func (t *Tracker) Failed() int64 {
	return t.failed.Load()
}

func (t *Tracker) worker() {
	defer t.wg.Done()

	batch := make([]EvaluationRecord, 0, t.options.BatchSize)
	ticker := time.NewTicker(t.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		t.write(batch)
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-t.events:
			batch = append(batch, rec)
			if len(batch) >= t.options.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-t.done:
			// The channel stays open: late Track calls must not panic.
			for {
				select {
				case rec := <-t.events:
					batch = append(batch, rec)
					if len(batch) >= t.options.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (t *Tracker) write(batch []EvaluationRecord) {
	// Detached from callers so request timeouts don't cancel analytics writes.
	ctx, cancel := context.WithTimeout(context.Background(), t.options.StorageTimeout)
	defer cancel()

	if bt, ok := t.storage.(BatchTracker); ok {
		if err := bt.TrackEvaluations(ctx, batch); err != nil {
			t.failed.Add(int64(len(batch)))
			t.logger.Warn("failed to store evaluation events",
				logger.Count("events", len(batch)),
				logger.Error(err),
			)
		}
		return
	}

	for _, rec := range batch {
		if err := t.storage.TrackEvaluation(ctx, rec); err != nil {
			t.failed.Add(1)
			t.logger.Warn("failed to store evaluation event",
				logger.FlagKey(rec.FlagKey),
				logger.Error(err),
			)
		}
	}
}

// Close flushes queued events and stops the worker.
// The context bounds how long Close waits for the final flush.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() { close(t.done) })

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
