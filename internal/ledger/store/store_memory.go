package store

import (
	"context"
	"sort"
	"sync"

	"alpine/internal/ledger/models"
	"alpine/pkg/platform/sentinel"
)

// InMemory holds the donation map, its two address indexes and the counter.
type InMemory struct {
	mu          sync.RWMutex
	count       uint64
	donations   map[uint64]models.Donation
	bySender    map[string][]uint64
	byRecipient map[string][]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		donations:   make(map[uint64]models.Donation),
		bySender:    make(map[string][]uint64),
		byRecipient: make(map[string][]uint64),
	}
}

// IncrementCount advances the counter and returns the new value.
func (s *InMemory) IncrementCount(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return s.count, nil
}

func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

// Insert writes the record and both index entries. An existing record with the
// same id yields sentinel.ErrAlreadyUsed and no write.
func (s *InMemory) Insert(_ context.Context, donation *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donations[donation.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.donations[donation.ID] = *donation
	s.bySender[donation.Sender.Address] = insertSorted(s.bySender[donation.Sender.Address], donation.ID)
	s.byRecipient[donation.Recipient.Address] = insertSorted(s.byRecipient[donation.Recipient.Address], donation.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uint64) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.donations[id]; ok {
		return &d, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListBySender returns the sender's donations in ascending id order.
func (s *InMemory) ListBySender(_ context.Context, addr string) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.bySender[addr]), nil
}

// ListByRecipient returns the recipient's donations in ascending id order.
func (s *InMemory) ListByRecipient(_ context.Context, addr string) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byRecipient[addr]), nil
}

func (s *InMemory) collect(ids []uint64) []*models.Donation {
	out := make([]*models.Donation, 0, len(ids))
	for _, id := range ids {
		d := s.donations[id]
		out = append(out, &d)
	}
	return out
}

func insertSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
