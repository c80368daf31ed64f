// Package search implements C9: a thin front over pkg/store that parses
// user query strings, applies filters, and tracks saved queries and
// recent-query history (spec.md §4.9). Argument validation is modeled on
// the teacher's Set*ByString validators in pkg/orchestrator/conversation.go
// — reject bad input early, with a sentinel error, before touching state.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/pkg/store"
)

// ErrInvalidQuery is returned for an empty or otherwise unusable query
// string.
var ErrInvalidQuery = errors.New("search: invalid query")

// ErrNotFound is returned when a saved query name doesn't exist.
var ErrNotFound = errors.New("search: not found")

// Store is the subset of pkg/store's Store the search service depends on.
type Store interface {
	Search(ctx context.Context, query string, filters store.Filters, limit, offset int) ([]store.SearchResult, error)
	ListTags(ctx context.Context) ([]string, error)
	ListParticipants(ctx context.Context) ([]string, error)
	PopularTerms(ctx context.Context, limit int) ([]string, error)
}

// Filters mirrors spec.md §4.9's filter set in front-end terms; toStore
// converts it to a store.Filters.
type Filters struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	MinDuration   *time.Duration
	MaxDuration   *time.Duration
	Participant   string
	Tag           string
	MinConfidence float64
}

func (f Filters) toStore(meetingID string) store.Filters {
	return store.Filters{
		MeetingID:     meetingID,
		From:          f.DateFrom,
		To:            f.DateTo,
		MinConfidence: f.MinConfidence,
		Participant:   f.Participant,
		Tag:           f.Tag,
		MinDuration:   f.MinDuration,
		MaxDuration:   f.MaxDuration,
	}
}

// SavedQuery is a named, reusable search, counted on every use.
type SavedQuery struct {
	Name      string
	Query     string
	Filters   Filters
	UsedCount int
	CreatedAt time.Time
	LastUsed  time.Time
}

// HistoryEntry is one past search, recorded regardless of whether it
// returned any results.
type HistoryEntry struct {
	Query string
	At    time.Time
}

// Config tunes the service. Zero-value Config is usable (falls back to
// DefaultConfig's HistoryCapacity).
type Config struct {
	HistoryCapacity int
}

// DefaultConfig returns the service's defaults.
func DefaultConfig() Config {
	return Config{HistoryCapacity: 100}
}

// Service implements C9 over a Store.
type Service struct {
	store Store
	cfg   Config

	mu      sync.Mutex
	saved   map[string]*SavedQuery
	history []HistoryEntry
}

// New builds a Service over store.
func New(s Store, cfg Config) *Service {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultConfig().HistoryCapacity
	}
	return &Service{
		store: s,
		cfg:   cfg,
		saved: make(map[string]*SavedQuery),
	}
}

// Search runs query with filters, records it in recent-query history, and
// returns the ranked results from C7.
func (s *Service) Search(ctx context.Context, query string, filters Filters, limit, offset int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	results, err := s.store.Search(ctx, query, filters.toStore(""), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	s.recordHistory(query)
	return results, nil
}

func (s *Service) recordHistory(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, HistoryEntry{Query: query, At: time.Now()})
	if len(s.history) > s.cfg.HistoryCapacity {
		s.history = s.history[len(s.history)-s.cfg.HistoryCapacity:]
	}
}

// History returns the recent-query history, most recent last (append-only
// order).
func (s *Service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

// PurgeHistory clears the recent-query history.
func (s *Service) PurgeHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// SaveQuery names query+filters for reuse. Saving an existing name
// overwrites it and resets its usage count.
func (s *Service) SaveQuery(name, query string, filters Filters) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(query) == "" {
		return ErrInvalidQuery
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[name] = &SavedQuery{Name: name, Query: query, Filters: filters, CreatedAt: time.Now()}
	return nil
}

// RunSaved executes the saved query under name, bumping its usage counter.
func (s *Service) RunSaved(ctx context.Context, name string, limit, offset int) ([]store.SearchResult, error) {
	s.mu.Lock()
	sq, ok := s.saved[name]
	if ok {
		sq.UsedCount++
		sq.LastUsed = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return s.Search(ctx, sq.Query, sq.Filters, limit, offset)
}

// SavedQueries returns every saved query.
func (s *Service) SavedQueries() []SavedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedQuery, 0, len(s.saved))
	for _, sq := range s.saved {
		out = append(out, *sq)
	}
	return out
}

// DeleteSavedQuery removes a saved query by name. Deleting an unknown name
// is a no-op.
func (s *Service) DeleteSavedQuery(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, name)
}

// Suggestions gathers up to perSource suggestions from each of the four sources named
// in spec.md §4.9: recent queries, popular terms, participant list, and tag
// list. Each source contributes independently; duplicates across sources
// are not de-duplicated, since they carry different meaning (a recent
// query vs. a participant name may coincide by chance).
type Suggestions struct {
	RecentQueries []string
	PopularTerms  []string
	Participants  []string
	Tags          []string
}

// Suggest builds Suggestions, capping each source at perSource entries.
func (s *Service) Suggest(ctx context.Context, perSource int) (Suggestions, error) {
	if perSource <= 0 {
		perSource = 5
	}

	var out Suggestions

	hist := s.History()
	for i := len(hist) - 1; i >= 0 && len(out.RecentQueries) < perSource; i-- {
		out.RecentQueries = append(out.RecentQueries, hist[i].Query)
	}

	terms, err := s.store.PopularTerms(ctx, perSource)
	if err != nil {
		return Suggestions{}, fmt.Errorf("search: suggest: %w", err)
	}
	out.PopularTerms = terms

	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return Suggestions{}, fmt.Errorf("search: suggest: %w", err)
	}
	out.Participants = capSlice(participants, perSource)

	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return Suggestions{}, fmt.Errorf("search: suggest: %w", err)
	}
	out.Tags = capSlice(tags, perSource)

	return out, nil
}

func capSlice(s []string, n int) []string {
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}
