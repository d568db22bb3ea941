package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pressbus/pressbus/pkg/types"
)

// ErrMissingField indicates a required data field absent from a message
var ErrMissingField = fmt.Errorf("missing required field")

// String returns the named field as a non-empty string
func (m *Message) String(key string) (string, error) {
	value, ok := m.Data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return s, nil
}

// StringOr returns the named field as a string, or fallback when absent
func (m *Message) StringOr(key, fallback string) string {
	if value, ok := m.Data[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return fallback
}

// IntOr returns the named field as an int, or fallback when absent or not
// numeric. JSON numbers arrive as float64.
func (m *Message) IntOr(key string, fallback int) int {
	value, ok := m.Data[key]
	if !ok {
		return fallback
	}
	switch n := value.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

// CategoryTargets returns the categories a SUBSCRIBE/UNSUBSCRIBE request
// names: either a single "category" string or a "categories" list.
func (m *Message) CategoryTargets() ([]string, error) {
	if value, ok := m.Data["categories"]; ok {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: categories", ErrMissingField)
		}
		categories := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: categories", ErrMissingField)
			}
			categories = append(categories, s)
		}
		if len(categories) == 0 {
			return nil, fmt.Errorf("%w: categories", ErrMissingField)
		}
		return categories, nil
	}

	category, err := m.String("category")
	if err != nil {
		return nil, err
	}
	return []string{category}, nil
}

// IDList returns the article ids a DELETE_NEWS request names
func (m *Message) IDList() ([]int64, error) {
	value, ok := m.Data["ids"]
	if !ok {
		return nil, fmt.Errorf("%w: ids", ErrMissingField)
	}
	list, ok := value.([]any)
	if !ok {
		// Encoded locally rather than through JSON round-trip
		if typed, ok := value.([]int64); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("%w: ids", ErrMissingField)
	}
	ids := make([]int64, 0, len(list))
	for _, item := range list {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: ids", ErrMissingField)
		}
		ids = append(ids, int64(n))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids", ErrMissingField)
	}
	return ids, nil
}

// Articles parses the article list out of a HISTORY response
func (m *Message) Articles() ([]*types.Article, error) {
	value, ok := m.Data["news"]
	if !ok {
		return nil, fmt.Errorf("%w: news", ErrMissingField)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("parse history items: %w", err)
	}
	var articles []*types.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, fmt.Errorf("parse history items: %w", err)
	}
	return articles, nil
}

// Text returns the message field of SUCCESS/ERROR responses
func (m *Message) Text() string {
	return m.StringOr("message", "")
}

// CategoryList parses the categories out of a CATEGORIES response
func (m *Message) CategoryList() []string {
	value, ok := m.Data["categories"]
	if !ok {
		return nil
	}
	switch list := value.(type) {
	case []string:
		return list
	case []any:
		categories := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				categories = append(categories, s)
			}
		}
		return categories
	}
	return nil
}
