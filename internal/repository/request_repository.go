package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vipul43/gigwatch/internal/fingerprint"
	"github.com/vipul43/gigwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestQuery selects a window of recent requests.
type RequestQuery struct {
	Category string // empty means every category
	Days     int
	Offset   int
	Limit    int
}

type RequestRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db, now: time.Now}
}

// Save persists records whose content hash is not stored yet and returns
// how many rows were inserted. Within one call the first occurrence of a
// hash wins. Records never matched to a source message are skipped.
func (r *RequestRepository) Save(ctx context.Context, records []models.ExtractedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	saved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordedAt := r.now().UTC()
		for _, rec := range records {
			if !rec.Attached() {
				continue
			}
			hash := fingerprint.Compute(rec.Text)

			var count int64
			if err := tx.Model(&models.FreelanceRequest{}).
				Where("content_hash = ?", hash).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check content hash: %w", err)
			}
			if count > 0 {
				continue
			}

			req := newFreelanceRequest(rec, hash, recordedAt)
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "content_hash"}},
				DoNothing: true,
			}).Create(&req)
			if result.Error != nil {
				return fmt.Errorf("failed to insert request: %w", result.Error)
			}
			saved += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// Evict deletes requests that occurred more than ttlDays ago.
func (r *RequestRepository) Evict(ctx context.Context, ttlDays int) (int64, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -ttlDays)
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&models.FreelanceRequest{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to evict requests: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StatsByCategory counts stored requests per category. Categories without
// requests are absent.
func (r *RequestRepository) StatsByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Category string
		Total    int64
	}
	result := r.db.WithContext(ctx).
		Model(&models.FreelanceRequest{}).
		Select("category, COUNT(*) AS total").
		Group("category").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate requests: %w", result.Error)
	}

	stats := make(map[string]int64, len(rows))
	for _, row := range rows {
		stats[row.Category] = row.Total
	}
	return stats, nil
}

// Query returns one page of requests, newest first, plus the total number
// of matches before paging.
func (r *RequestRepository) Query(ctx context.Context, q RequestQuery) ([]models.FreelanceRequest, int64, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -q.Days)
	base := r.db.WithContext(ctx).
		Model(&models.FreelanceRequest{}).
		Where("occurred_at >= ?", cutoff)
	if q.Category != "" {
		base = base.Where("category = ?", q.Category)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	var requests []models.FreelanceRequest
	result := base.
		Order("occurred_at DESC").
		Order("id").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&requests)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to query requests: %w", result.Error)
	}
	return requests, total, nil
}

func newFreelanceRequest(rec models.ExtractedRecord, hash string, recordedAt time.Time) models.FreelanceRequest {
	budget := rec.Budget
	if budget == "" {
		budget = models.BudgetUnspecified
	}
	urgency := rec.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}
	skills := models.StringList(rec.Skills)
	if skills == nil {
		skills = models.StringList{}
	}
	return models.FreelanceRequest{
		ID:              uuid.New().String(),
		Category:        rec.Category,
		Title:           rec.Title,
		Description:     rec.Description,
		Budget:          budget,
		Skills:          skills,
		Contact:         rec.Contact,
		Urgency:         urgency,
		SourceChat:      rec.SourceChat,
		SourceMessageID: rec.SourceMessageID,
		OccurredAt:      rec.OccurredAt.UTC(),
		ContentHash:     hash,
		RecordedAt:      recordedAt,
	}
}
