package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/pkg/jobs"
)

const closeJobType = "session.close"

type dueSessionLister interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type dueSessionCloser interface {
	CloseDue(ctx context.Context, sessionID string) error
}

// AutoCloserConfig tunes the deadline sweeper and its worker pool.
type AutoCloserConfig struct {
	Interval   time.Duration
	BatchSize  int
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AutoCloser periodically finds sessions past their deadline and closes them
// through a retrying job queue.
type AutoCloser struct {
	sessions  dueSessionLister
	closer    dueSessionCloser
	queue     *jobs.Queue
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutoCloser wires the sweeper to its queue.
func NewAutoCloser(sessions dueSessionLister, closer dueSessionCloser, metrics *MetricsService, cfg AutoCloserConfig, logger *zap.Logger) *AutoCloser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	a := &AutoCloser{
		sessions:  sessions,
		closer:    closer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    logger,
		now:       time.Now,
	}
	a.queue = jobs.NewQueue("session-close", a.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.IncCloseFailures()
		},
	})
	return a
}

// Start launches the workers and the sweep ticker.
func (a *AutoCloser) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.queue.Start(ctx)

	ticker := time.NewTicker(a.interval)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.Sweep(ctx); err != nil {
					a.logger.Sugar().Warnw("auto-close sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the ticker and drains the workers.
func (a *AutoCloser) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.queue.Stop()
}

// Sweep enqueues one close job per due session and returns how many were queued.
// Sessions already queued or being closed are skipped.
func (a *AutoCloser) Sweep(ctx context.Context) (int, error) {
	ids, err := a.sessions.ListDue(ctx, a.now().UTC(), a.batchSize)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		err := a.queue.Enqueue(jobs.Job{ID: id, Type: closeJobType})
		switch {
		case err == nil:
			queued++
		case errors.Is(err, jobs.ErrDuplicate):
		default:
			return queued, err
		}
	}
	if queued > 0 {
		a.logger.Sugar().Infow("auto-close jobs queued", "count", queued)
	}
	return queued, nil
}

func (a *AutoCloser) handle(ctx context.Context, job jobs.Job) error {
	return a.closer.CloseDue(ctx, job.ID)
}
