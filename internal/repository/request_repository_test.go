package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vipul43/gigwatch/internal/fingerprint"
	"github.com/vipul43/gigwatch/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestRequestRepository_SaveDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepository(newTestDB(t))
	repo.now = fixedClock(testNow)

	first := attachedRecord("dev", "same text", 1, testNow.Add(-time.Hour))
	dup := attachedRecord("dev", "same text", 2, testNow.Add(-time.Minute))
	dup.Title = "Second title"
	other := attachedRecord("design", "other text", 3, testNow.Add(-2*time.Hour))

	saved, err := repo.Save(ctx, []models.ExtractedRecord{first, dup, other})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// saving the same input again inserts nothing
	saved, err = repo.Save(ctx, []models.ExtractedRecord{first, dup, other})
	require.NoError(t, err)
	assert.Equal(t, 0, saved)

	var stored []models.FreelanceRequest
	require.NoError(t, repo.db.Order("source_message_id").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, "Request same text", stored[0].Title, "first occurrence wins")
	assert.Equal(t, fingerprint.Compute("same text"), stored[0].ContentHash)
	assert.Equal(t, models.BudgetUnspecified, stored[0].Budget)
	assert.Equal(t, models.StringList{"go"}, stored[0].Skills)
	assert.Equal(t, testNow, stored[0].RecordedAt.UTC())
}

func TestRequestRepository_SaveSkipsUnattached(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t))

	saved, err := repo.Save(context.Background(), []models.ExtractedRecord{
		{Title: "orphan", Description: "no source", SourceMessageID: 99},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, saved)

	saved, err = repo.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
}

func TestRequestRepository_Evict(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepository(newTestDB(t))
	repo.now = fixedClock(testNow)

	cutoff := testNow.AddDate(0, 0, -30)
	_, err := repo.Save(ctx, []models.ExtractedRecord{
		attachedRecord("dev", "old", 1, cutoff.Add(-time.Second)),
		attachedRecord("dev", "boundary", 2, cutoff),
		attachedRecord("dev", "fresh", 3, testNow.AddDate(0, 0, -29)),
	})
	require.NoError(t, err)

	evicted, err := repo.Evict(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)

	var remaining []models.FreelanceRequest
	require.NoError(t, repo.db.Order("source_message_id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, int64(2), remaining[0].SourceMessageID)
	assert.Equal(t, int64(3), remaining[1].SourceMessageID)
}

func TestRequestRepository_StatsByCategory(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepository(newTestDB(t))

	stats, err := repo.StatsByCategory(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)

	_, err = repo.Save(ctx, []models.ExtractedRecord{
		attachedRecord("dev", "a", 1, testNow),
		attachedRecord("dev", "b", 2, testNow),
		attachedRecord("dev", "c", 3, testNow),
		attachedRecord("design", "d", 4, testNow),
	})
	require.NoError(t, err)

	stats, err = repo.StatsByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"dev": 3, "design": 1}, stats)
	_, ok := stats["copywriting"]
	assert.False(t, ok, "categories without requests are omitted")
}

func TestRequestRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepository(newTestDB(t))
	repo.now = fixedClock(testNow)

	var records []models.ExtractedRecord
	for i := 1; i <= 7; i++ {
		records = append(records, attachedRecord("dev", "dev-"+string(rune('a'+i)), int64(i), testNow.Add(-time.Duration(i)*time.Hour)))
	}
	records = append(records,
		attachedRecord("design", "design-1", 100, testNow.Add(-30*time.Minute)),
		attachedRecord("dev", "too-old", 200, testNow.AddDate(0, 0, -8)),
	)
	_, err := repo.Save(ctx, records)
	require.NoError(t, err)

	page, total, err := repo.Query(ctx, RequestQuery{Category: "dev", Days: 7, Offset: 0, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, page, 5)
	for i := 1; i < len(page); i++ {
		assert.True(t, page[i-1].OccurredAt.After(page[i].OccurredAt), "newest first")
	}
	assert.Equal(t, int64(1), page[0].SourceMessageID)

	page, total, err = repo.Query(ctx, RequestQuery{Category: "dev", Days: 7, Offset: 5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, page, 2)

	page, total, err = repo.Query(ctx, RequestQuery{Days: 7, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Equal(t, int64(100), page[0].SourceMessageID)

	page, total, err = repo.Query(ctx, RequestQuery{Days: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)
	assert.Len(t, page, 9)

	page, total, err = repo.Query(ctx, RequestQuery{Category: "copywriting", Days: 7, Limit: 5})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}
