package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidCategory indicates a category outside the configured set
var ErrInvalidCategory = fmt.Errorf("invalid category")

// Article represents a single published news item. Articles are immutable
// once created; only the history store assigns IDs.
type Article struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Lead      string    `json:"lead"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// CategorySet is the server's fixed set of concrete categories plus the
// reserved wildcard keyword. The wildcard is a valid subscription target but
// never a member of the set itself.
type CategorySet struct {
	categories map[string]struct{}
	wildcard   string
}

// NewCategorySet builds a set from the configured category names. Names are
// case-normalized; duplicates collapse.
func NewCategorySet(categories []string, wildcard string) *CategorySet {
	set := &CategorySet{
		categories: make(map[string]struct{}, len(categories)),
		wildcard:   Normalize(wildcard),
	}
	for _, cat := range categories {
		if normalized := Normalize(cat); normalized != "" {
			set.categories[normalized] = struct{}{}
		}
	}
	return set
}

// Normalize canonicalizes a category name for comparison
func Normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Wildcard returns the reserved wildcard keyword
func (s *CategorySet) Wildcard() string {
	return s.wildcard
}

// Contains reports whether category is a concrete member of the set.
// The wildcard is not a member.
func (s *CategorySet) Contains(category string) bool {
	_, ok := s.categories[Normalize(category)]
	return ok
}

// ValidTarget reports whether category may be subscribed to: any concrete
// member or the wildcard.
func (s *CategorySet) ValidTarget(category string) bool {
	normalized := Normalize(category)
	if normalized == s.wildcard {
		return true
	}
	_, ok := s.categories[normalized]
	return ok
}

// Names returns the concrete categories in sorted order
func (s *CategorySet) Names() []string {
	names := make([]string, 0, len(s.categories))
	for cat := range s.categories {
		names = append(names, cat)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of concrete categories
func (s *CategorySet) Len() int {
	return len(s.categories)
}
