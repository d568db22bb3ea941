package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pressbus/pressbus/pkg/protocol"
	"github.com/pressbus/pressbus/pkg/types"
)

var (
	// ErrDuplicateConnection indicates a register call for an identity already present
	ErrDuplicateConnection = fmt.Errorf("connection already registered")

	// ErrUnknownConnection indicates an operation referencing an unregistered connection
	ErrUnknownConnection = fmt.Errorf("unknown connection")
)

// Entry is one live connection's registry record: its identity, peer address,
// outbound delivery channel, and subscription set. The subscription set is
// owned exclusively by the registry; only the outbound channel and identity
// are for callers.
type Entry struct {
	ID       string
	Addr     string
	Outbound chan *protocol.Message

	categories map[string]struct{}
}

// Registry tracks which live connections want which categories. All
// operations are safe under concurrent mutation and concurrent snapshot
// reads; a single mutex guards the entry table and every per-entry
// subscription set.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	set     *types.CategorySet
}

// New creates an empty registry validating against the given category set
func New(set *types.CategorySet) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		set:     set,
	}
}

// Register creates an empty entry for a newly accepted connection
func (r *Registry) Register(id, addr string, outbound chan *protocol.Message) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, id)
	}

	entry := &Entry{
		ID:         id,
		Addr:       addr,
		Outbound:   outbound,
		categories: make(map[string]struct{}),
	}
	r.entries[id] = entry
	return entry, nil
}

// Subscribe adds a category to a connection's subscription set. Subscribing
// to an already-held category is a no-op success.
func (r *Registry) Subscribe(id, category string) error {
	normalized := types.Normalize(category)
	if !r.set.ValidTarget(normalized) {
		return fmt.Errorf("%w: %q", types.ErrInvalidCategory, category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	entry.categories[normalized] = struct{}{}
	return nil
}

// Unsubscribe removes a category from a connection's subscription set.
// Removing an absent category is a no-op success.
func (r *Registry) Unsubscribe(id, category string) error {
	normalized := types.Normalize(category)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	delete(entry.categories, normalized)
	return nil
}

// Subscriptions returns a sorted copy of a connection's current subscription set
func (r *Registry) Subscriptions(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}

	categories := make([]string, 0, len(entry.categories))
	for cat := range entry.categories {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	return categories, nil
}

// Matching returns a snapshot of every entry whose subscription set contains
// the category or the wildcard. The returned slice is a fixed copy: a
// concurrent subscribe or unsubscribe affects only future snapshots, never
// one already taken.
func (r *Registry) Matching(category string) []*Entry {
	normalized := types.Normalize(category)

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Entry
	for _, entry := range r.entries {
		if _, ok := entry.categories[normalized]; ok {
			matched = append(matched, entry)
			continue
		}
		if _, ok := entry.categories[r.set.Wildcard()]; ok {
			matched = append(matched, entry)
		}
	}
	return matched
}

// Deregister removes a connection's entry. Safe to call for an identity that
// was never registered.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats returns the subscriber count per concrete category, including
// wildcard subscribers in every category's count.
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]int, r.set.Len())
	for _, category := range r.set.Names() {
		stats[category] = 0
	}
	for _, entry := range r.entries {
		_, wildcard := entry.categories[r.set.Wildcard()]
		for category := range stats {
			if wildcard {
				stats[category]++
				continue
			}
			if _, ok := entry.categories[category]; ok {
				stats[category]++
			}
		}
	}
	return stats
}
