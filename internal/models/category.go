package models

import "time"

// Category is the persisted view of a configured group of chat sources
type Category struct {
	Slug            string     `gorm:"column:slug;primaryKey" json:"slug"`
	DisplayName     string     `gorm:"column:display_name" json:"display_name"`
	Description     string     `gorm:"column:description" json:"description"`
	MemberSourceIDs StringList `gorm:"column:member_source_ids;type:jsonb" json:"member_source_ids"`
	Active          bool       `gorm:"column:active;index" json:"active"`
	LastRunAt       *time.Time `gorm:"column:last_run_at" json:"last_run_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Category) TableName() string {
	return "categories"
}

// SourceCount is the number of member chat sources.
func (c Category) SourceCount() int {
	return len(c.MemberSourceIDs)
}
