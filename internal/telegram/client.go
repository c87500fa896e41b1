// Package telegram reads public channel history through the t.me web
// preview (https://t.me/s/<channel>).
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vipul43/gigwatch/internal/service"
)

const (
	DefaultBaseURL   = "https://t.me"
	defaultUserAgent = "Mozilla/5.0 (compatible; gigwatch/1.0)"
	maxPageBytes     = 4 << 20
)

var (
	ErrPrivateSource = errors.New("source has no public username")
	ErrNoPreview     = errors.New("channel has no public web preview")
)

// Config controls the web preview client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// MaxPages bounds how far back one History call pages.
	MaxPages int
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
}

// Client is one open connection to the web preview.
type Client struct {
	cfg        Config
	httpClient *http.Client
	transport  *http.Transport
}

// Dial opens a client. The returned client must be closed.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid telegram base URL: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		cfg:       cfg,
		transport: transport,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}, nil
}

// Connector returns a service.Connector that dials with cfg.
func Connector(cfg Config) service.Connector {
	return service.ConnectorFunc(func(ctx context.Context) (service.Platform, error) {
		client, err := Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// History pages the channel backwards and yields messages newest first.
func (c *Client) History(ctx context.Context, sourceID string) iter.Seq2[service.ChatMessage, error] {
	return func(yield func(service.ChatMessage, error) bool) {
		channel, err := normalizeSource(sourceID)
		if err != nil {
			yield(service.ChatMessage{}, err)
			return
		}

		var before int64
		for range c.cfg.MaxPages {
			posts, err := c.fetchPage(ctx, channel, before)
			if err != nil {
				yield(service.ChatMessage{}, err)
				return
			}
			if len(posts) == 0 {
				return
			}
			// pages are in ascending order
			for i := len(posts) - 1; i >= 0; i-- {
				if !yield(posts[i], nil) {
					return
				}
			}
			oldest := posts[0].ID
			if oldest <= 1 || (before != 0 && oldest >= before) {
				return
			}
			before = oldest
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, channel string, before int64) ([]service.ChatMessage, error) {
	pageURL := c.cfg.BaseURL + "/s/" + url.PathEscape(channel)
	if before > 0 {
		pageURL += "?before=" + strconv.FormatInt(before, 10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	return parsePage(io.LimitReader(resp.Body, maxPageBytes))
}

// normalizeSource turns "@name", "name" or a t.me link into a channel username.
func normalizeSource(sourceID string) (string, error) {
	s := strings.TrimSpace(sourceID)
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "s/")
	s = strings.TrimPrefix(s, "@")
	s = strings.Trim(s, "/")

	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrPrivateSource, sourceID)
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return "", fmt.Errorf("%w: %q", ErrPrivateSource, sourceID)
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "joinchat/") {
		return "", fmt.Errorf("%w: %q", ErrPrivateSource, sourceID)
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", fmt.Errorf("invalid channel username %q", sourceID)
		}
	}
	return s, nil
}
