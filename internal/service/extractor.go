package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/vipul43/gigwatch/internal/models"
)

var (
	ErrMalformedReply = errors.New("malformed model reply")
	ErrInvalidRecord  = errors.New("invalid extracted record")
)

// Completer sends a prompt to a generative model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BatchResult is the outcome of extracting one batch. A skipped batch has a
// SkipReason and no records.
type BatchResult struct {
	Records    []models.ExtractedRecord
	SkipReason error
}

// Skipped reports whether the batch contributed nothing because of a failure.
func (r BatchResult) Skipped() bool {
	return r.SkipReason != nil
}

// Extractor turns message batches into request records.
type Extractor struct {
	model      Completer
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewExtractor(model Completer, maxRetries int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, maxRetries: maxRetries, backoff: 2 * time.Second, logger: logger}
}

// Extract asks the model for the requests contained in batch. Model and
// parse failures skip the batch; the error is non-nil only when ctx is done.
func (e *Extractor) Extract(ctx context.Context, batch []models.Message) (BatchResult, error) {
	if len(batch) == 0 {
		return BatchResult{}, nil
	}

	reply, err := e.complete(ctx, BuildPrompt(batch))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return BatchResult{}, ctxErr
		}
		e.logger.Warn("model call failed, skipping batch", "messages", len(batch), "error", err)
		return BatchResult{SkipReason: fmt.Errorf("model call failed: %w", err)}, nil
	}

	records, err := ParseReply(reply)
	if err != nil {
		e.logger.Warn("unusable model reply, skipping batch", "messages", len(batch), "error", err)
		return BatchResult{SkipReason: err}, nil
	}
	return BatchResult{Records: records}, nil
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Info("retrying model call", "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, time.Duration(attempt)*e.backoff); err != nil {
				return "", err
			}
		}
		reply, err := e.model.Complete(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

const promptHeader = `You analyse messages from freelance chat channels and find requests for hiring a freelancer or contractor.

For every message that contains such a request, return one JSON object with these keys:
- "title": short title of the job (string, required)
- "description": what has to be done, 1-3 sentences (string, required)
- "budget": budget or rate as written in the message, or "unspecified"
- "skills": list of required skills (array of strings, may be empty)
- "contact": how to contact the author (username, link, email) or null
- "urgency": "urgent" if the message says it is urgent, otherwise "normal"
- "source_message_id": the message_id of the message (integer, required)

Ignore advertisements, resumes of people looking for work, spam and chatter.

Answer with a JSON array only, without explanations. If no message contains a request, answer [].

Messages:

`

// BuildPrompt renders the extraction instruction followed by the batch as
// "[message_id: N]" blocks separated by blank lines.
func BuildPrompt(batch []models.Message) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for i, msg := range batch {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[message_id: %d]\n%s", msg.SourceMessageID, msg.Text)
	}
	return b.String()
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	// drop the language tag, e.g. ```json, on its own line or not
	content = strings.TrimLeftFunc(content, unicode.IsLetter)
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

type rawRecord struct {
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	Budget          *string         `json:"budget"`
	Skills          []string        `json:"skills"`
	Contact         *string         `json:"contact"`
	Urgency         string          `json:"urgency"`
	SourceMessageID json.RawMessage `json:"source_message_id"`
}

// ParseReply decodes a model reply into validated records. A reply that is
// not a JSON array yields ErrMalformedReply, a record violating the schema
// yields ErrInvalidRecord.
func ParseReply(reply string) ([]models.ExtractedRecord, error) {
	cleaned := stripCodeFence(reply)

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: reply is not a JSON array", ErrMalformedReply)
	}

	var items []rawRecord
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}

	records := make([]models.ExtractedRecord, 0, len(items))
	for i, item := range items {
		rec, err := item.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidRecord, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r rawRecord) validate() (models.ExtractedRecord, error) {
	var rec models.ExtractedRecord

	if r.Title == nil || strings.TrimSpace(*r.Title) == "" {
		return rec, errors.New("missing title")
	}
	if r.Description == nil || strings.TrimSpace(*r.Description) == "" {
		return rec, errors.New("missing description")
	}
	id, err := parseMessageID(r.SourceMessageID)
	if err != nil {
		return rec, err
	}
	urgency, err := models.ParseUrgency(r.Urgency)
	if err != nil {
		return rec, err
	}

	rec.Title = strings.TrimSpace(*r.Title)
	rec.Description = strings.TrimSpace(*r.Description)
	rec.Budget = models.BudgetUnspecified
	if r.Budget != nil && strings.TrimSpace(*r.Budget) != "" {
		rec.Budget = strings.TrimSpace(*r.Budget)
	}
	rec.Skills = make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		if s = strings.TrimSpace(s); s != "" {
			rec.Skills = append(rec.Skills, s)
		}
	}
	if r.Contact != nil && strings.TrimSpace(*r.Contact) != "" {
		contact := strings.TrimSpace(*r.Contact)
		rec.Contact = &contact
	}
	rec.Urgency = urgency
	rec.SourceMessageID = id
	return rec, nil
}

// parseMessageID accepts a JSON integer or a string holding one.
func parseMessageID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing source_message_id")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid source_message_id %s", raw)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid source_message_id %s", raw)
	}
	return id, nil
}

// Attach copies source chat, time, category and raw text from the
// originating message onto each record. Records whose id matches no message
// are returned unchanged.
func Attach(records []models.ExtractedRecord, messages []models.Message) []models.ExtractedRecord {
	byID := make(map[int64]models.Message, len(messages))
	for _, msg := range messages {
		if _, ok := byID[msg.SourceMessageID]; !ok {
			byID[msg.SourceMessageID] = msg
		}
	}

	out := make([]models.ExtractedRecord, len(records))
	for i, rec := range records {
		if msg, ok := byID[rec.SourceMessageID]; ok {
			rec.SourceChat = msg.SourceID
			rec.OccurredAt = msg.OccurredAt
			rec.Category = msg.Category
			rec.Text = msg.Text
		}
		out[i] = rec
	}
	return out
}
