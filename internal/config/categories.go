package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCategories marks a categories file that cannot drive a run.
var ErrInvalidCategories = errors.New("invalid categories configuration")

// Category is one named group of chat sources.
type Category struct {
	Slug        string   `yaml:"-"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Chats       []string `yaml:"chats"`
}

// CategoryList keeps categories in the order they appear in the file.
type CategoryList []Category

// UnmarshalYAML decodes a slug-keyed mapping without losing key order.
func (l *CategoryList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("categories must be a mapping, got line %d", node.Line)
	}
	out := make(CategoryList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var c Category
		if err := node.Content[i+1].Decode(&c); err != nil {
			return fmt.Errorf("category %q: %w", node.Content[i].Value, err)
		}
		c.Slug = node.Content[i].Value
		out = append(out, c)
	}
	*l = out
	return nil
}

type categoriesFile struct {
	Categories CategoryList `yaml:"categories"`
}

// LoadCategories reads and validates the categories file.
func LoadCategories(path string) (CategoryList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCategories, err)
	}
	return ParseCategories(data)
}

// ParseCategories decodes categories YAML and applies defaults.
func ParseCategories(data []byte) (CategoryList, error) {
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCategories, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories defined", ErrInvalidCategories)
	}

	seen := make(map[string]bool, len(f.Categories))
	for i := range f.Categories {
		c := &f.Categories[i]
		c.applyDefaults()
		if c.Slug == "" {
			return nil, fmt.Errorf("%w: empty category slug", ErrInvalidCategories)
		}
		if seen[c.Slug] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCategories, c.Slug)
		}
		seen[c.Slug] = true
		if c.Name == "" {
			return nil, fmt.Errorf("%w: category %q: missing name", ErrInvalidCategories, c.Slug)
		}
		if len(c.Chats) == 0 {
			return nil, fmt.Errorf("%w: category %q: no chats", ErrInvalidCategories, c.Slug)
		}
	}
	return f.Categories, nil
}

func (c *Category) applyDefaults() {
	c.Slug = strings.TrimSpace(c.Slug)
	c.Name = strings.TrimSpace(c.Name)
	chats := c.Chats[:0]
	for _, chat := range c.Chats {
		if chat = strings.TrimSpace(chat); chat != "" {
			chats = append(chats, chat)
		}
	}
	c.Chats = chats
}
