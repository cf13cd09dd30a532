package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"alpine/internal/registry/models"
	"alpine/pkg/platform/sentinel"
)

// InMemory keeps the two registry mappings in maps guarded by one lock.
type InMemory struct {
	mu         sync.RWMutex
	byUsername map[string]models.Identity
	byAddress  map[string]models.Identity
}

func NewInMemory() *InMemory {
	return &InMemory{
		byUsername: make(map[string]models.Identity),
		byAddress:  make(map[string]models.Identity),
	}
}

// FindByUsernameFold scans usernames in descending order and returns the first
// one equal to username after lower-casing both sides.
func (s *InMemory) FindByUsernameFold(_ context.Context, username string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.byUsername))
	for k := range s.byUsername {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	want := strings.ToLower(username)
	for _, k := range keys {
		if strings.ToLower(k) == want {
			identity := s.byUsername[k]
			return &identity, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByAddress(_ context.Context, addr string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.byAddress[addr]; ok {
		return &identity, nil
	}
	return nil, sentinel.ErrNotFound
}

// Save writes the identity under both its username and its address.
// Either key already being present yields sentinel.ErrAlreadyUsed and no write;
// an address collision yields models.ErrAddressInUse.
func (s *InMemory) Save(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[identity.Username]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byAddress[identity.Address]; ok {
		return models.ErrAddressInUse
	}
	s.byUsername[identity.Username] = *identity
	s.byAddress[identity.Address] = *identity
	return nil
}

// ListByUsername returns every registered identity ordered by username ascending.
func (s *InMemory) ListByUsername(_ context.Context) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.byUsername))
	for k := range s.byUsername {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*models.Identity, 0, len(keys))
	for _, k := range keys {
		identity := s.byUsername[k]
		out = append(out, &identity)
	}
	return out, nil
}
