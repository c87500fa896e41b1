package models

import "time"

// JobStatus is the lifecycle state of a pipeline run
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// What started a run
const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// JobMetrics are the counters a run accumulates.
type JobMetrics struct {
	SourcesProcessed int   `gorm:"column:sources_processed" json:"sources_processed"`
	SourcesSkipped   int   `gorm:"column:sources_skipped" json:"sources_skipped"`
	MessagesFound    int   `gorm:"column:messages_found" json:"messages_found"`
	RecordsExtracted int   `gorm:"column:records_extracted" json:"records_extracted"`
	RecordsSaved     int   `gorm:"column:records_saved" json:"records_saved"`
	RecordsEvicted   int64 `gorm:"column:records_evicted" json:"records_evicted"`
}

// JobLog records one pipeline run
type JobLog struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	Trigger     string     `gorm:"column:triggered_by" json:"trigger"`
	Status      JobStatus  `gorm:"column:status;index" json:"status"`
	StartedAt   time.Time  `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	ErrorDetail *string    `gorm:"column:error_detail" json:"error_detail,omitempty"`
	JobMetrics  `gorm:"embedded"`
}

// TableName specifies the table name for GORM
func (JobLog) TableName() string {
	return "job_logs"
}

// Duration of a finished run, zero while running.
func (j JobLog) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
