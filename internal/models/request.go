package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BudgetUnspecified is stored when the model found no budget in the message.
const BudgetUnspecified = "unspecified"

// Urgency of a freelance request
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyNormal Urgency = "normal"
)

// ParseUrgency accepts the two known values, case-insensitively. Empty means normal.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(normalize(s)) {
	case "", UrgencyNormal:
		return UrgencyNormal, nil
	case UrgencyUrgent:
		return UrgencyUrgent, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// StringList type for GORM to handle JSON array columns
type StringList []string

// Value implements driver.Valuer for StringList
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for StringList
func (l *StringList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// ExtractedRecord is one request returned by the extraction model. The
// source fields are filled in by the attacher from the originating message.
type ExtractedRecord struct {
	Title           string
	Description     string
	Budget          string
	Skills          []string
	Contact         *string
	Urgency         Urgency
	SourceMessageID int64

	SourceChat string
	OccurredAt time.Time
	Category   string
	Text       string
}

// Attached reports whether the record was matched to its source message.
func (r ExtractedRecord) Attached() bool {
	return r.Text != ""
}

// FreelanceRequest represents a persisted, deduplicated request
type FreelanceRequest struct {
	ID              string     `gorm:"column:id;primaryKey" json:"id"`
	Category        string     `gorm:"column:category;index" json:"category"`
	Title           string     `gorm:"column:title" json:"title"`
	Description     string     `gorm:"column:description" json:"description"`
	Budget          string     `gorm:"column:budget" json:"budget"`
	Skills          StringList `gorm:"column:skills;type:jsonb" json:"skills"`
	Contact         *string    `gorm:"column:contact" json:"contact,omitempty"`
	Urgency         Urgency    `gorm:"column:urgency" json:"urgency"`
	SourceChat      string     `gorm:"column:source_chat" json:"source_chat"`
	SourceMessageID int64      `gorm:"column:source_message_id" json:"source_message_id"`
	OccurredAt      time.Time  `gorm:"column:occurred_at;index" json:"occurred_at"`
	ContentHash     string     `gorm:"column:content_hash;size:64;uniqueIndex" json:"-"`
	RecordedAt      time.Time  `gorm:"column:recorded_at" json:"recorded_at"`
}

// TableName specifies the table name for GORM
func (FreelanceRequest) TableName() string {
	return "freelance_requests"
}
