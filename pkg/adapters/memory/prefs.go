package memory

import (
	"context"
	"sync"

	"github.com/aretw0/detailtree/pkg/domain"
)

// PrefsStore implements ports.PrefsStore in memory.
// Safe for concurrent use.
type PrefsStore struct {
	data map[string]domain.Prefs
	mu   sync.RWMutex
}

// NewPrefsStore creates a new in-memory prefs store.
func NewPrefsStore() *PrefsStore {
	return &PrefsStore{
		data: make(map[string]domain.Prefs),
	}
}

// Save persists the prefs of a view.
func (s *PrefsStore) Save(ctx context.Context, view string, prefs domain.Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[view] = prefs
	return nil
}

// Load retrieves the prefs of a view.
func (s *PrefsStore) Load(ctx context.Context, view string) (domain.Prefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[view]
	if !ok {
		return domain.Prefs{}, domain.ErrPrefsNotFound
	}
	return p, nil
}

// Delete removes the prefs of a view.
func (s *PrefsStore) Delete(ctx context.Context, view string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, view)
	return nil
}
