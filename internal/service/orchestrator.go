package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vipul43/gigwatch/internal/config"
	"github.com/vipul43/gigwatch/internal/models"
	"github.com/vipul43/gigwatch/internal/repository"
)

// finalizeTimeout bounds the terminal job log write after cancellation.
const finalizeTimeout = 10 * time.Second

type JobLogStore interface {
	Start(ctx context.Context, trigger string) (*models.JobLog, error)
	Finish(ctx context.Context, jobID string, status models.JobStatus, metrics models.JobMetrics, errorDetail *string) error
}

type CategoryStore interface {
	Sync(ctx context.Context, categories []models.Category) error
	TouchLastRun(ctx context.Context, slug string, at time.Time) error
}

type RequestStore interface {
	Save(ctx context.Context, records []models.ExtractedRecord) (int, error)
	Evict(ctx context.Context, ttlDays int) (int64, error)
}

// CategoryLoader returns the current category configuration.
type CategoryLoader func() (config.CategoryList, error)

// Options tune a pipeline run
type Options struct {
	BatchSize     int
	LookbackDays  int
	TTLDays       int
	MinTextLength int
	SourceDelay   time.Duration
}

// OptionsFromConfig picks the pipeline settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:     cfg.BatchSize,
		LookbackDays:  cfg.LookbackDays,
		TTLDays:       cfg.TTLDays,
		MinTextLength: cfg.MinTextLength,
		SourceDelay:   cfg.SourceDelay,
	}
}

// Orchestrator runs the harvest pipeline end to end and records the run.
type Orchestrator struct {
	jobs       JobLogStore
	categories CategoryStore
	requests   RequestStore
	connector  Connector
	extractor  *Extractor
	load       CategoryLoader
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func NewOrchestrator(
	jobs JobLogStore,
	categories CategoryStore,
	requests RequestStore,
	connector Connector,
	extractor *Extractor,
	load CategoryLoader,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:       jobs,
		categories: categories,
		requests:   requests,
		connector:  connector,
		extractor:  extractor,
		load:       load,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one pipeline run. The returned job log is in a terminal
// state whenever it is non-nil; the error is the reason a run failed.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*models.JobLog, error) {
	job, err := o.jobs.Start(ctx, trigger)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("job_id", job.ID, "trigger", trigger)
	logger.Info("pipeline run started")

	var metrics models.JobMetrics
	runErr := o.run(ctx, logger, &metrics)

	status := models.JobStatusSuccess
	var detail *string
	if runErr != nil {
		status = models.JobStatusFailed
		msg := runErr.Error()
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(runErr, ctxErr) {
			msg = fmt.Sprintf("cancelled: %v", context.Cause(ctx))
		}
		detail = &msg
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := o.jobs.Finish(finishCtx, job.ID, status, metrics, detail); err != nil {
		logger.Error("failed to finish job log", "error", err)
		return nil, errors.Join(runErr, err)
	}

	finishedAt := o.now().UTC()
	job.Status = status
	job.FinishedAt = &finishedAt
	job.ErrorDetail = detail
	job.JobMetrics = metrics

	if runErr != nil {
		logger.Error("pipeline run failed", "error", runErr)
		return job, runErr
	}
	logger.Info("pipeline run finished",
		"sources", metrics.SourcesProcessed,
		"sources_skipped", metrics.SourcesSkipped,
		"messages", metrics.MessagesFound,
		"extracted", metrics.RecordsExtracted,
		"saved", metrics.RecordsSaved,
		"evicted", metrics.RecordsEvicted,
	)
	return job, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, metrics *models.JobMetrics) error {
	if o.opts.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	categories, err := o.load()
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if err := o.categories.Sync(ctx, toModels(categories)); err != nil {
		return fmt.Errorf("failed to sync categories: %w", err)
	}

	platform, err := o.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to chat platform: %w", err)
	}
	defer func() {
		if err := platform.Close(); err != nil {
			logger.Warn("failed to close chat platform", "error", err)
		}
	}()

	walker := NewWalker(NewReader(platform, o.opts.MinTextLength), o.opts.SourceDelay, o.opts.LookbackDays, logger)
	for i, category := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && o.opts.SourceDelay > 0 {
			if err := sleep(ctx, o.opts.SourceDelay); err != nil {
				return err
			}
		}
		if err := o.processCategory(ctx, logger, walker, category, metrics); err != nil {
			return err
		}
	}

	evicted, err := o.requests.Evict(ctx, o.opts.TTLDays)
	if err != nil {
		return err
	}
	metrics.RecordsEvicted = evicted
	return nil
}

func (o *Orchestrator) processCategory(ctx context.Context, logger *slog.Logger, walker *Walker, category config.Category, metrics *models.JobMetrics) error {
	logger = logger.With("category", category.Slug)

	result, err := walker.Walk(ctx, category)
	metrics.SourcesProcessed += len(result.Sources)
	metrics.SourcesSkipped += result.Skipped()
	metrics.MessagesFound += len(result.Messages)
	if err != nil {
		return err
	}

	batches, err := Split(result.Messages, o.opts.BatchSize)
	if err != nil {
		return err
	}

	extracted, saved, skipped := 0, 0, 0
	for _, batch := range batches {
		br, err := o.extractor.Extract(ctx, batch)
		if err != nil {
			return err
		}
		if br.Skipped() {
			skipped++
			continue
		}

		records := Attach(br.Records, batch)
		extracted += len(records)
		n, err := o.requests.Save(ctx, records)
		if err != nil {
			return err
		}
		saved += n
	}
	metrics.RecordsExtracted += extracted
	metrics.RecordsSaved += saved

	if err := o.categories.TouchLastRun(ctx, category.Slug, o.now()); err != nil {
		return err
	}

	logger.Info("category processed",
		"messages", len(result.Messages),
		"batches", len(batches),
		"batches_skipped", skipped,
		"extracted", extracted,
		"saved", saved,
	)
	return nil
}

func toModels(categories config.CategoryList) []models.Category {
	out := make([]models.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.Category{
			Slug:            c.Slug,
			DisplayName:     c.Name,
			Description:     c.Description,
			MemberSourceIDs: models.StringList(c.Chats),
			Active:          true,
		})
	}
	return out
}

var (
	_ JobLogStore   = (*repository.JobLogRepository)(nil)
	_ CategoryStore = (*repository.CategoryRepository)(nil)
	_ RequestStore  = (*repository.RequestRepository)(nil)
)
