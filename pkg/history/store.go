package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressbus/pressbus/pkg/log"
	"github.com/pressbus/pressbus/pkg/types"
)

var (
	// ErrEmptyTitle indicates a publish request without a usable title
	ErrEmptyTitle = fmt.Errorf("article title must not be empty")

	// ErrPersistence indicates a failed durable write; the in-memory log is
	// left unchanged when this is returned.
	ErrPersistence = fmt.Errorf("history persistence failed")
)

// Config holds history store configuration
type Config struct {
	Path         string // durable mirror file
	Capacity     int    // maximum retained articles
	DefaultLimit int    // query limit when the caller gives none
}

// Store is the bounded, ordered, durable record of published articles.
// Mutations are serialized; queries may run concurrently with each other.
type Store struct {
	mu           sync.RWMutex
	path         string
	capacity     int
	defaultLimit int
	set          *types.CategorySet
	articles     []*types.Article
	nextID       int64
	logger       zerolog.Logger
}

// New creates a store and loads the durable mirror. An absent file is an
// empty history; records that fail shape validation are skipped and logged
// rather than aborting startup.
func New(cfg Config, set *types.CategorySet) (*Store, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	s := &Store{
		path:         cfg.Path,
		capacity:     cfg.Capacity,
		defaultLimit: cfg.DefaultLimit,
		set:          set,
		nextID:       1,
		logger:       log.WithComponent("history"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the durable mirror into memory
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse history file: %w", err)
	}

	skipped := 0
	for _, record := range records {
		var article types.Article
		if err := json.Unmarshal(record, &article); err != nil {
			skipped++
			s.logger.Warn().Err(err).Msg("skipping unreadable history record")
			continue
		}
		if article.ID <= 0 || strings.TrimSpace(article.Title) == "" || article.Category == "" {
			skipped++
			s.logger.Warn().Int64("id", article.ID).Msg("skipping invalid history record")
			continue
		}
		s.articles = append(s.articles, &article)
		if article.ID >= s.nextID {
			s.nextID = article.ID + 1
		}
	}

	if len(s.articles) > s.capacity {
		s.articles = s.articles[len(s.articles)-s.capacity:]
	}

	s.logger.Info().
		Int("articles", len(s.articles)).
		Int("skipped", skipped).
		Str("path", s.path).
		Msg("history loaded")
	return nil
}

// persist writes the candidate log atomically: full serialization to a
// temporary file in the target directory, then rename over the mirror.
func (s *Store) persist(articles []*types.Article) error {
	if articles == nil {
		articles = []*types.Article{}
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".news-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Publish validates and appends a new article, evicting the oldest entry
// once capacity is exceeded. The durable mirror is written before the
// in-memory log changes; on persistence failure nothing is retained.
func (s *Store) Publish(title, lead, category string) (*types.Article, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	normalized := types.Normalize(category)
	if !s.set.Contains(normalized) {
		// Wildcard is rejected here too: an article has exactly one
		// concrete category.
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidCategory, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	article := &types.Article{
		ID:        s.nextID,
		Title:     title,
		Lead:      lead,
		Category:  normalized,
		Timestamp: time.Now().UTC(),
	}

	candidate := make([]*types.Article, len(s.articles), len(s.articles)+1)
	copy(candidate, s.articles)
	candidate = append(candidate, article)
	if len(candidate) > s.capacity {
		candidate = candidate[len(candidate)-s.capacity:]
	}

	if err := s.persist(candidate); err != nil {
		return nil, err
	}

	s.articles = candidate
	s.nextID++
	return article, nil
}

// Query returns up to limit most-recent articles matching category, newest
// first. Empty category matches all; limit <= 0 uses the configured default.
func (s *Store) Query(category string, limit int) []*types.Article {
	normalized := types.Normalize(category)
	if limit <= 0 {
		limit = s.defaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.Article, 0, limit)
	for i := len(s.articles) - 1; i >= 0 && len(results) < limit; i-- {
		if normalized == "" || s.articles[i].Category == normalized {
			results = append(results, s.articles[i])
		}
	}
	return results
}

// Delete removes the articles with the given ids, ignoring ids not present,
// and returns the count removed.
func (s *Store) Delete(ids []int64) (int, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := make([]*types.Article, 0, len(s.articles))
	for _, article := range s.articles {
		if _, ok := wanted[article.ID]; !ok {
			candidate = append(candidate, article)
		}
	}

	removed := len(s.articles) - len(candidate)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persist(candidate); err != nil {
		return 0, err
	}

	s.articles = candidate
	return removed, nil
}

// Clear empties the log and persists the empty state
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(nil); err != nil {
		return err
	}
	s.articles = nil
	return nil
}

// Len returns the number of retained articles
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
