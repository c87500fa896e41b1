package models

import "time"

// Message is a chat message that passed the reader filters. It lives only
// for the duration of one run.
type Message struct {
	SourceMessageID int64
	SourceID        string
	Category        string
	Text            string
	OccurredAt      time.Time
	IsAutomated     bool
}
