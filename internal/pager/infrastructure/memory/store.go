package memory

import (
	"context"
	"sort"
	"sync"

	pager "quake-pager/internal/pager/domain"
)

// Store is an in-memory version store for tests and single-process runs.
type Store struct {
	mu       sync.Mutex
	versions map[string][]pager.Version
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{versions: make(map[string][]pager.Version)}
}

// AppendVersion assigns the next version number for the event and stores a
// copy of the document.
func (s *Store) AppendVersion(ctx context.Context, version *pager.Version) (*pager.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *version
	history := s.versions[version.EventCode]
	if stored.Number == 0 {
		stored.Number = len(history) + 1
	} else if stored.Number != len(history)+1 {
		return nil, pager.ErrVersionConflict
	}
	s.versions[version.EventCode] = append(history, stored)
	result := stored
	return &result, nil
}

// History returns all versions for an event ordered by version number.
func (s *Store) History(ctx context.Context, eventCode string) ([]pager.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.versions[eventCode]
	if !ok {
		return nil, pager.ErrNotFound
	}
	out := append([]pager.Version(nil), history...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// GetLatest returns the newest version for an event.
func (s *Store) GetLatest(ctx context.Context, eventCode string) (*pager.Version, error) {
	history, err := s.History(ctx, eventCode)
	if err != nil {
		return nil, err
	}
	latest := history[len(history)-1]
	return &latest, nil
}
