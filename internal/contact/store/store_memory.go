package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"identify/internal/contact/models"
	"identify/pkg/platform/sentinel"
)

// InMemoryStore keeps contacts in process memory. Every method is atomic with
// respect to the others; cross-call isolation comes from the service locker.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts map[int64]*models.Contact
	nextID   int64
}

// NewInMemoryStore creates an empty store. IDs start at 1.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contacts: make(map[int64]*models.Contact)}
}

// FindMatching returns contacts selected by match, oldest first.
func (s *InMemoryStore) FindMatching(_ context.Context, match models.Match) ([]*models.Contact, error) {
	if match.IsEmpty() {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(match.Selects), nil
}

// FindByID returns the contact or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contacts[id]; ok {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
}

// FindByIDs returns the contacts that exist among ids, oldest first.
func (s *InMemoryStore) FindByIDs(_ context.Context, ids []int64) ([]*models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c *models.Contact) bool {
		return slices.Contains(ids, c.ID)
	}), nil
}

// FindLinked returns contacts whose LinkedID is one of primaryIDs, oldest first.
func (s *InMemoryStore) FindLinked(_ context.Context, primaryIDs ...int64) ([]*models.Contact, error) {
	if len(primaryIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c *models.Contact) bool {
		return c.LinkedID != nil && slices.Contains(primaryIDs, *c.LinkedID)
	}), nil
}

// Create assigns the next ID and stores a copy of contact.
func (s *InMemoryStore) Create(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	contact.ID = s.nextID
	s.contacts[contact.ID] = contact.Clone()
	return nil
}

// Relink demotes every contact in scope except primaryID to a secondary of
// primaryID. Rows already linked to primaryID are left untouched.
func (s *InMemoryStore) Relink(_ context.Context, scope models.RelinkScope, primaryID int64, now time.Time) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, c := range s.contacts {
		if c.ID == primaryID || !scope.Selects(c) {
			continue
		}
		if !c.IsPrimary() && c.LinkedID != nil && *c.LinkedID == primaryID {
			continue
		}
		if err := c.DemoteTo(primaryID, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Count returns the number of stored contacts.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts), nil
}

// collect must be called with the lock held.
func (s *InMemoryStore) collect(keep func(*models.Contact) bool) []*models.Contact {
	var out []*models.Contact
	for _, c := range s.contacts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	models.SortByAge(out)
	return out
}
