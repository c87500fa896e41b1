// Package gemini is an extraction backend on the Google Generative Language API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

const (
	DefaultModel = "gemini-1.5-flash"
	scope        = "https://www.googleapis.com/auth/generative-language"
)

var ErrNoCandidates = errors.New("no candidates in model response")

type Config struct {
	APIKey string
	Model  string
	// TokenSource is used when APIKey is empty. Nil means application
	// default credentials.
	TokenSource oauth2.TokenSource
	// Options are appended last, e.g. a custom endpoint.
	Options []option.ClientOption
}

type Client struct {
	svc   *generativelanguage.Service
	model string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.TokenSource != nil:
		opts = append(opts, option.WithTokenSource(cfg.TokenSource))
	default:
		ts, err := google.DefaultTokenSource(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("no GEMINI_API_KEY and no default credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	opts = append(opts, cfg.Options...)

	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create generative language service: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{svc: svc, model: resourceName(model)}, nil
}

// Complete sends prompt as a single user turn and returns the concatenated
// text of the first candidate.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}

	resp, err := c.svc.Models.GenerateContent(c.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generateContent: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrNoCandidates, resp.PromptFeedback.BlockReason)
		}
		return "", ErrNoCandidates
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func resourceName(model string) string {
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "tunedModels/") {
		return model
	}
	return "models/" + model
}
