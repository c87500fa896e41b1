package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vipul43/gigwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// one connection keeps the in-memory database alive across queries
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Category{}, &models.FreelanceRequest{}, &models.JobLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func attachedRecord(category, text string, id int64, occurredAt time.Time) models.ExtractedRecord {
	return models.ExtractedRecord{
		Title:           "Request " + text,
		Description:     "Description of " + text,
		Skills:          []string{"go"},
		Urgency:         models.UrgencyNormal,
		SourceMessageID: id,
		SourceChat:      "@source",
		OccurredAt:      occurredAt,
		Category:        category,
		Text:            text,
	}
}
