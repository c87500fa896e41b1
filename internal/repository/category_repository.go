package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vipul43/gigwatch/internal/database"
	"github.com/vipul43/gigwatch/internal/models"
	"gorm.io/gorm"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db, now: time.Now}
}

// Sync makes the stored categories mirror the configured ones. Configured
// categories are created or updated and marked active; every other stored
// category is deactivated.
func (r *CategoryRepository) Sync(ctx context.Context, categories []models.Category) error {
	slugs := make([]string, 0, len(categories))
	for _, c := range categories {
		if err := r.upsert(ctx, c); err != nil {
			return err
		}
		slugs = append(slugs, c.Slug)
	}

	q := r.db.WithContext(ctx).Model(&models.Category{}).Where("active = ?", true)
	if len(slugs) > 0 {
		q = q.Where("slug NOT IN ?", slugs)
	}
	if err := q.Updates(map[string]interface{}{
		"active":     false,
		"updated_at": r.now().UTC(),
	}).Error; err != nil {
		return fmt.Errorf("failed to deactivate categories: %w", err)
	}
	return nil
}

func (r *CategoryRepository) upsert(ctx context.Context, c models.Category) error {
	db := r.db.WithContext(ctx)
	if c.MemberSourceIDs == nil {
		c.MemberSourceIDs = models.StringList{}
	}

	var existing models.Category
	err := db.First(&existing, "slug = ?", c.Slug).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.Active = true
		createErr := db.Create(&c).Error
		if createErr == nil {
			return nil
		}
		if !database.IsUniqueViolation(createErr) {
			return fmt.Errorf("failed to create category %s: %w", c.Slug, createErr)
		}
		// created concurrently, fall through to update
	case err != nil:
		return fmt.Errorf("failed to get category %s: %w", c.Slug, err)
	}

	result := db.Model(&models.Category{}).
		Where("slug = ?", c.Slug).
		Updates(map[string]interface{}{
			"display_name":      c.DisplayName,
			"description":       c.Description,
			"member_source_ids": c.MemberSourceIDs,
			"active":            true,
			"updated_at":        r.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update category %s: %w", c.Slug, result.Error)
	}
	return nil
}

// Get retrieves a category by slug
func (r *CategoryRepository) Get(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	result := r.db.WithContext(ctx).First(&c, "slug = ?", slug)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", result.Error)
	}
	return &c, nil
}

// ListActive retrieves active categories ordered by display name
func (r *CategoryRepository) ListActive(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	result := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("display_name ASC").
		Find(&categories)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list categories: %w", result.Error)
	}
	return categories, nil
}

// TouchLastRun stamps the time a category was last processed
func (r *CategoryRepository) TouchLastRun(ctx context.Context, slug string, at time.Time) error {
	at = at.UTC()
	result := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("slug = ?", slug).
		Updates(map[string]interface{}{
			"last_run_at": &at,
			"updated_at":  r.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update category last run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
