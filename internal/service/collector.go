package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/vipul43/gigwatch/internal/config"
	"github.com/vipul43/gigwatch/internal/models"
)

// DefaultMinTextLength is the shortest message text worth extracting from.
const DefaultMinTextLength = 50

// ChatMessage is a raw message as the chat platform returns it
type ChatMessage struct {
	ID                int64
	Text              string
	Date              time.Time
	SenderIsAutomated bool
}

// Platform is an open connection to the chat platform, owned by one run.
type Platform interface {
	// History yields messages of a source newest first. Iteration stops at
	// the first error.
	History(ctx context.Context, sourceID string) iter.Seq2[ChatMessage, error]
	Close() error
}

// Connector opens platform connections
type Connector interface {
	Connect(ctx context.Context) (Platform, error)
}

// SourceUnavailableError means a source could not be read. The run goes on
// without it.
type SourceUnavailableError struct {
	SourceID string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.SourceID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// SourceOutcome is the result of reading one source.
type SourceOutcome struct {
	SourceID string
	Messages []models.Message
	Err      error
}

// Skipped reports whether the source failed and contributed nothing.
func (o SourceOutcome) Skipped() bool {
	return o.Err != nil
}

// Reader pulls filtered recent messages from a single source.
type Reader struct {
	platform      Platform
	minTextLength int
	now           func() time.Time
}

func NewReader(platform Platform, minTextLength int) *Reader {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	return &Reader{platform: platform, minTextLength: minTextLength, now: time.Now}
}

// Read walks the source history newest first and stops at the first message
// older than lookbackDays. Undated, empty, short and automated messages are
// dropped.
// A platform failure yields an empty outcome carrying a
// *SourceUnavailableError; only context cancellation is returned as error.
func (r *Reader) Read(ctx context.Context, sourceID string, lookbackDays int) (SourceOutcome, error) {
	outcome := SourceOutcome{SourceID: sourceID}
	cutoff := r.now().AddDate(0, 0, -lookbackDays)

	var messages []models.Message
	for msg, err := range r.platform.History(ctx, sourceID) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, ctxErr
			}
			outcome.Err = &SourceUnavailableError{SourceID: sourceID, Err: err}
			return outcome, nil
		}
		// service messages may carry no timestamp
		if msg.Date.IsZero() {
			continue
		}
		if msg.Date.Before(cutoff) {
			break
		}
		if !r.accept(msg) {
			continue
		}
		messages = append(messages, models.Message{
			SourceMessageID: msg.ID,
			SourceID:        sourceID,
			Text:            msg.Text,
			OccurredAt:      msg.Date,
		})
	}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	outcome.Messages = messages
	return outcome, nil
}

func (r *Reader) accept(msg ChatMessage) bool {
	if msg.Text == "" || msg.SenderIsAutomated {
		return false
	}
	return utf8.RuneCountInString(msg.Text) >= r.minTextLength
}

// CategoryResult is everything one category walk produced.
type CategoryResult struct {
	Category string
	Messages []models.Message
	Sources  []SourceOutcome
}

// Skipped counts sources that failed.
func (r CategoryResult) Skipped() int {
	n := 0
	for _, s := range r.Sources {
		if s.Skipped() {
			n++
		}
	}
	return n
}

// Walker reads every source of a category, pausing between sources.
type Walker struct {
	reader       *Reader
	delay        time.Duration
	lookbackDays int
	logger       *slog.Logger
}

func NewWalker(reader *Reader, delay time.Duration, lookbackDays int, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{reader: reader, delay: delay, lookbackDays: lookbackDays, logger: logger}
}

// Walk reads the category's sources in configured order and tags every
// message with the category slug. Failed sources are logged and recorded in
// the result. The error is non-nil only when ctx is done.
func (w *Walker) Walk(ctx context.Context, category config.Category) (CategoryResult, error) {
	result := CategoryResult{Category: category.Slug}

	for i, sourceID := range category.Chats {
		if i > 0 && w.delay > 0 {
			if err := sleep(ctx, w.delay); err != nil {
				return result, err
			}
		}

		outcome, err := w.reader.Read(ctx, sourceID, w.lookbackDays)
		if err != nil {
			return result, err
		}
		if outcome.Skipped() {
			w.logger.Warn("skipping unavailable source",
				"category", category.Slug, "source", sourceID, "error", outcome.Err)
		} else {
			w.logger.Debug("source read",
				"category", category.Slug, "source", sourceID, "messages", len(outcome.Messages))
		}

		for j := range outcome.Messages {
			outcome.Messages[j].Category = category.Slug
		}
		result.Messages = append(result.Messages, outcome.Messages...)
		result.Sources = append(result.Sources, outcome)
	}

	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsSourceUnavailable reports whether err marks a skipped source.
func IsSourceUnavailable(err error) bool {
	var target *SourceUnavailableError
	return errors.As(err, &target)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Platform, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Platform, error) {
	return f(ctx)
}
