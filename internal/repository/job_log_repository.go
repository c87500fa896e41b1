package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vipul43/gigwatch/internal/models"
	"gorm.io/gorm"
)

var (
	ErrJobLogNotFound = errors.New("job log not found")
	ErrJobNotRunning  = errors.New("job log is not running")
)

type JobLogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobLogRepository(db *gorm.DB) *JobLogRepository {
	return &JobLogRepository{db: db, now: time.Now}
}

// Start records a new running job
func (r *JobLogRepository) Start(ctx context.Context, trigger string) (*models.JobLog, error) {
	job := models.JobLog{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    models.JobStatusRunning,
		StartedAt: r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job log: %w", err)
	}
	return &job, nil
}

// Finish moves a running job to a terminal status. A job can be finished
// only once.
func (r *JobLogRepository) Finish(ctx context.Context, jobID string, status models.JobStatus, metrics models.JobMetrics, errorDetail *string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish job with status %q", status)
	}

	now := r.now().UTC()
	result := r.db.WithContext(ctx).Model(&models.JobLog{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":            status,
			"finished_at":       &now,
			"error_detail":      errorDetail,
			"sources_processed": metrics.SourcesProcessed,
			"sources_skipped":   metrics.SourcesSkipped,
			"messages_found":    metrics.MessagesFound,
			"records_extracted": metrics.RecordsExtracted,
			"records_saved":     metrics.RecordsSaved,
			"records_evicted":   metrics.RecordsEvicted,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish job log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJobNotRunning
	}
	return nil
}

// Get retrieves a job log by ID
func (r *JobLogRepository) Get(ctx context.Context, jobID string) (*models.JobLog, error) {
	var job models.JobLog
	result := r.db.WithContext(ctx).First(&job, "id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJobLogNotFound
		}
		return nil, fmt.Errorf("failed to get job log: %w", result.Error)
	}
	return &job, nil
}

// Last retrieves the most recently started job log
func (r *JobLogRepository) Last(ctx context.Context) (*models.JobLog, error) {
	var job models.JobLog
	result := r.db.WithContext(ctx).Order("started_at DESC").First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJobLogNotFound
		}
		return nil, fmt.Errorf("failed to get last job log: %w", result.Error)
	}
	return &job, nil
}

// Recent retrieves up to limit job logs, newest first
func (r *JobLogRepository) Recent(ctx context.Context, limit int) ([]models.JobLog, error) {
	var jobs []models.JobLog
	result := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query job logs: %w", result.Error)
	}
	return jobs, nil
}

// FailStale marks jobs left running by a previous process as failed.
func (r *JobLogRepository) FailStale(ctx context.Context, detail string) (int64, error) {
	now := r.now().UTC()
	result := r.db.WithContext(ctx).Model(&models.JobLog{}).
		Where("status = ?", models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":       models.JobStatusFailed,
			"finished_at":  &now,
			"error_detail": detail,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail stale job logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
