// Package watchlist is the administrator-managed plate/person registry.
// It is a lookup surface for operators and administrators, not an ingestion
// gate: incoming events already carry watchlist_match in their metadata
// from the upstream detector, and the engine reads that flag directly
// (see internal/engine). This registry exists so administrators can record
// why an entry was added, disable one without losing its history, and audit
// who added what.
package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"alibi/internal/domain"
)

// Store is a JSON-file-backed watchlist registry, guarded by a mutex since
// every write rewrites the whole file. Sized for hundreds of entries, not a
// bulk plate-database import.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]domain.WatchlistEntry
}

// Open loads entries from path, creating an empty store file if one does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: map[string]domain.WatchlistEntry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := s.persistLocked(); werr != nil {
				return nil, werr
			}
			return s, nil
		}
		return nil, fmt.Errorf("read watchlist store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var list []domain.WatchlistEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode watchlist store: %w", err)
	}
	for _, e := range list {
		s.entries[e.ID] = e
	}
	return s, nil
}

// Add creates a new watchlist entry.
func (s *Store) Add(kind, value, reason, addedBy string) (domain.WatchlistEntry, error) {
	now := time.Now().UTC()
	entry := domain.WatchlistEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Value:     value,
		Reason:    reason,
		AddedBy:   addedBy,
		Active:    true,
		CreatedTS: now,
		UpdatedTS: now,
	}
	if err := entry.Validate(); err != nil {
		return domain.WatchlistEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	if err := s.persistLocked(); err != nil {
		return domain.WatchlistEntry{}, err
	}
	return entry, nil
}

// Get returns a single entry by ID.
func (s *Store) Get(id string) (domain.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return domain.WatchlistEntry{}, fmt.Errorf("%w: watchlist entry %q", domain.ErrNotFound, id)
	}
	return entry, nil
}

// List returns all entries, optionally restricted to active-only.
func (s *Store) List(activeOnly bool) []domain.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WatchlistEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SetActive enables or disables an entry without deleting its history.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: watchlist entry %q", domain.ErrNotFound, id)
	}
	entry.Active = active
	entry.UpdatedTS = time.Now().UTC()
	s.entries[id] = entry
	return s.persistLocked()
}

// MatchesValue reports whether value is an active registry entry, for
// callers that want to check an event's metadata value against the curated
// registry rather than trusting the detector flag alone. The engine and the
// shift report do not call it.
func (s *Store) MatchesValue(value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Active && e.Value == value {
			return true
		}
	}
	return false
}

func (s *Store) persistLocked() error {
	list := make([]domain.WatchlistEntry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode watchlist store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create watchlist store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write watchlist store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit watchlist store: %w", err)
	}
	return nil
}
