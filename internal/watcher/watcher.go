package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/vipul43/gigwatch/internal/config"
	"github.com/vipul43/gigwatch/internal/lock"
	"github.com/vipul43/gigwatch/internal/models"
)

var (
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
	ErrStopped       = errors.New("watcher is shutting down")
)

const staleJobDetail = "interrupted: worker stopped before the run finished"

type Runner interface {
	Run(ctx context.Context, trigger string) (*models.JobLog, error)
}

type StaleJobs interface {
	FailStale(ctx context.Context, detail string) (int64, error)
}

// Watcher triggers pipeline runs on a cron schedule and on demand, never
// more than one at a time.
type Watcher struct {
	runner     Runner
	jobs       StaleJobs
	locker     lock.Locker
	schedule   string
	runOnStart bool
	cron       *cron.Cron
	logger     *slog.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	stopping bool
	wg       sync.WaitGroup
}

func New(cfg *config.Config, runner Runner, jobs StaleJobs, locker lock.Locker, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		runner:     runner,
		jobs:       jobs,
		locker:     locker,
		schedule:   fmt.Sprintf("@every %s", cfg.ParseInterval),
		runOnStart: cfg.RunOnStart,
		cron:       cron.New(cron.WithLogger(cron.DiscardLogger)),
		logger:     logger.With("component", "watcher"),
		baseCtx:    context.Background(),
	}
}

// Start schedules runs and blocks until ctx is done, then waits for the
// in-flight run to wind down.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.baseCtx = ctx
	w.mu.Unlock()

	w.recoverStaleJobs(ctx)

	if _, err := w.cron.AddFunc(w.schedule, func() {
		w.runGuarded(ctx, models.TriggerScheduled)
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	w.cron.Start()
	w.logger.Info("watcher started", "schedule", w.schedule)

	// Run immediately so results do not wait for the first tick
	if w.runOnStart {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runGuarded(ctx, models.TriggerStartup)
		}()
	}

	<-ctx.Done()
	w.logger.Info("watcher shutting down")
	w.mu.Lock()
	w.stopping = true
	w.mu.Unlock()
	<-w.cron.Stop().Done()
	w.wg.Wait()
	return ctx.Err()
}

// RunNow runs the pipeline synchronously. It fails with ErrRunInProgress
// when another run holds the lock.
func (w *Watcher) RunNow(ctx context.Context, trigger string) (*models.JobLog, error) {
	unlock, err := w.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return w.runner.Run(ctx, trigger)
}

// Trigger starts a run in the background and returns once the lock is
// taken. It fails with ErrStopped once Start is shutting down.
func (w *Watcher) Trigger(trigger string) error {
	w.mu.Lock()
	if w.stopping || w.baseCtx.Err() != nil {
		w.mu.Unlock()
		return ErrStopped
	}
	ctx := w.baseCtx
	w.wg.Add(1)
	w.mu.Unlock()

	unlock, err := w.acquire(ctx)
	if err != nil {
		w.wg.Done()
		return err
	}

	go func() {
		defer w.wg.Done()
		defer unlock()
		if _, err := w.runner.Run(ctx, trigger); err != nil {
			w.logger.Warn("triggered run failed", "trigger", trigger, "error", err)
		}
	}()
	return nil
}

func (w *Watcher) runGuarded(ctx context.Context, trigger string) {
	_, err := w.RunNow(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		w.logger.Info("previous run still in progress, skipping", "trigger", trigger)
	default:
		w.logger.Warn("run failed", "trigger", trigger, "error", err)
	}
}

func (w *Watcher) acquire(ctx context.Context) (func(), error) {
	unlock, err := w.locker.TryLock(ctx)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// recoverStaleJobs fails job logs left running by a previous process. It
// is skipped while another replica holds the lock.
func (w *Watcher) recoverStaleJobs(ctx context.Context) {
	unlock, err := w.acquire(ctx)
	if err != nil {
		w.logger.Info("skipping stale job recovery", "reason", err)
		return
	}
	defer unlock()

	n, err := w.jobs.FailStale(ctx, staleJobDetail)
	if err != nil {
		w.logger.Warn("failed to recover stale jobs", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("marked stale jobs as failed", "count", n)
	}
}
