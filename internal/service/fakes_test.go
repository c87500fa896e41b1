package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vipul43/gigwatch/internal/models"
)

type fakePlatform struct {
	mu        sync.Mutex
	histories map[string][]ChatMessage // newest first
	failing   map[string]error
	yielded   map[string]int
	calls     []string
	closed    bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		histories: make(map[string][]ChatMessage),
		failing:   make(map[string]error),
		yielded:   make(map[string]int),
	}
}

func (p *fakePlatform) History(ctx context.Context, sourceID string) iter.Seq2[ChatMessage, error] {
	return func(yield func(ChatMessage, error) bool) {
		p.mu.Lock()
		p.calls = append(p.calls, sourceID)
		err, failing := p.failing[sourceID]
		history := p.histories[sourceID]
		p.mu.Unlock()

		if failing {
			yield(ChatMessage{}, err)
			return
		}
		for _, m := range history {
			if ctx.Err() != nil {
				yield(ChatMessage{}, ctx.Err())
				return
			}
			p.mu.Lock()
			p.yielded[sourceID]++
			p.mu.Unlock()
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeConnector struct {
	platform *fakePlatform
	err      error
}

func (c *fakeConnector) Connect(ctx context.Context) (Platform, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.platform, nil
}

type mockCompleter struct {
	mu           sync.Mutex
	prompts      []string
	completeFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.completeFunc != nil {
		return m.completeFunc(ctx, prompt)
	}
	return "[]", nil
}

var messageIDPattern = regexp.MustCompile(`\[message_id: (\d+)\]`)

// echoCompleter returns one record per message in the prompt.
func echoCompleter() *mockCompleter {
	return &mockCompleter{completeFunc: func(ctx context.Context, prompt string) (string, error) {
		var items []string
		for _, m := range messageIDPattern.FindAllStringSubmatch(prompt, -1) {
			items = append(items, fmt.Sprintf(
				`{"title":"Job %[1]s","description":"Work for message %[1]s","budget":"100$","skills":["go"],"contact":null,"urgency":"normal","source_message_id":%[1]s}`,
				m[1]))
		}
		return "```json\n[" + strings.Join(items, ",") + "]\n```", nil
	}}
}

type mockJobLogStore struct {
	started  []string
	finished []finishCall
	startErr error
}

type finishCall struct {
	status  models.JobStatus
	metrics models.JobMetrics
	detail  *string
	ctxErr  error
}

func (m *mockJobLogStore) Start(ctx context.Context, trigger string) (*models.JobLog, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, trigger)
	return &models.JobLog{ID: "job-1", Trigger: trigger, Status: models.JobStatusRunning, StartedAt: time.Now()}, nil
}

func (m *mockJobLogStore) Finish(ctx context.Context, jobID string, status models.JobStatus, metrics models.JobMetrics, detail *string) error {
	if len(m.finished) > 0 {
		return errors.New("finished twice")
	}
	m.finished = append(m.finished, finishCall{status: status, metrics: metrics, detail: detail, ctxErr: ctx.Err()})
	return nil
}

type mockCategoryStore struct {
	synced  [][]models.Category
	touched []string
	syncErr error
}

func (m *mockCategoryStore) Sync(ctx context.Context, categories []models.Category) error {
	if m.syncErr != nil {
		return m.syncErr
	}
	m.synced = append(m.synced, categories)
	return nil
}

func (m *mockCategoryStore) TouchLastRun(ctx context.Context, slug string, at time.Time) error {
	m.touched = append(m.touched, slug)
	return nil
}

type mockRequestStore struct {
	saved    []models.ExtractedRecord
	saveErr  error
	evictTTL int
}

func (m *mockRequestStore) Save(ctx context.Context, records []models.ExtractedRecord) (int, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.saved = append(m.saved, records...)
	return len(records), nil
}

func (m *mockRequestStore) Evict(ctx context.Context, ttlDays int) (int64, error) {
	m.evictTTL = ttlDays
	return 0, nil
}

func longText(prefix string) string {
	return prefix + strings.Repeat(" need help with a project", 3)
}
