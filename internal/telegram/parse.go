package telegram

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vipul43/gigwatch/internal/service"
)

const (
	classHistory = "tgme_channel_history"
	classMessage = "tgme_widget_message"
	classText    = "tgme_widget_message_text"
	classReply   = "tgme_widget_message_reply"
	classDate    = "tgme_widget_message_date"
	classViaBot  = "tgme_widget_message_via_bot"
)

var (
	sanitizer   = bluemonday.UGCPolicy()
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
)

// parsePage extracts the messages of one preview page in ascending id order.
func parsePage(r io.Reader) ([]service.ChatMessage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	if findFirst(doc, hasClass(classHistory), nil) == nil {
		return nil, ErrNoPreview
	}

	var posts []service.ChatMessage
	walk(doc, func(n *html.Node) bool {
		if !hasClass(classMessage)(n) || getAttr(n, "data-post") == "" {
			return true
		}
		if msg, ok := parseMessage(n); ok {
			posts = append(posts, msg)
		}
		return false
	})

	slices.SortFunc(posts, func(a, b service.ChatMessage) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return posts, nil
}

func parseMessage(n *html.Node) (service.ChatMessage, bool) {
	post := getAttr(n, "data-post")
	idx := strings.LastIndexByte(post, '/')
	if idx < 0 {
		return service.ChatMessage{}, false
	}
	id, err := strconv.ParseInt(post[idx+1:], 10, 64)
	if err != nil {
		return service.ChatMessage{}, false
	}

	msg := service.ChatMessage{ID: id}
	if textNode := findFirst(n, hasClass(classText), hasClass(classReply)); textNode != nil {
		msg.Text = renderText(textNode)
	}
	if dateNode := findFirst(n, hasClass(classDate), nil); dateNode != nil {
		if t := findFirst(dateNode, isElement(atom.Time), nil); t != nil {
			msg.Date = parseDate(getAttr(t, "datetime"))
		}
	}
	msg.SenderIsAutomated = findFirst(n, hasClass(classViaBot), nil) != nil
	return msg, true
}

// renderText converts the message body HTML to markdown text.
func renderText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return strings.TrimSpace(textContent(n))
		}
	}
	clean := sanitizer.Sanitize(b.String())
	md, err := mdConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(textContent(n))
	}
	return strings.TrimSpace(md)
}

func parseDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findFirst returns the first descendant of n matching match, not looking
// inside subtrees matching skip.
func findFirst(n *html.Node, match, skip func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if skip != nil && skip(c) {
			continue
		}
		if match(c) {
			return c
		}
		if found := findFirst(c, match, skip); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		return slices.Contains(strings.Fields(getAttr(n, "class")), class)
	}
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && c.DataAtom == atom.Br:
			b.WriteString("\n")
		}
		return true
	})
	return b.String()
}
