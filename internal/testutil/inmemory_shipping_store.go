package testutil

import (
	"context"
	"sync"

	"github.com/rebillhq/rebill/internal/domain/shipping"
	ierr "github.com/rebillhq/rebill/internal/errors"
)

// InMemoryShippingStore implements shipping.Repository
type InMemoryShippingStore struct {
	*InMemoryStore[*shipping.Method]

	mu       sync.RWMutex
	lastUsed map[string]string
}

func NewInMemoryShippingStore() *InMemoryShippingStore {
	return &InMemoryShippingStore{
		InMemoryStore: NewInMemoryStore[*shipping.Method](),
		lastUsed:      make(map[string]string),
	}
}

func (s *InMemoryShippingStore) GetByID(ctx context.Context, id string) (*shipping.Method, error) {
	m, ok := s.Get(id)
	if !ok {
		return nil, ierr.NewErrorf("shipping method %s not found", id).
			WithHint("Shipping method not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *m
	return &copied, nil
}

func (s *InMemoryShippingStore) GetLastUsed(ctx context.Context, orderID string) (*shipping.Method, error) {
	s.mu.RLock()
	methodID, ok := s.lastUsed[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetByID(ctx, methodID)
}

// SetLastUsed records the historical shipping method of an order
func (s *InMemoryShippingStore) SetLastUsed(orderID, methodID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed[orderID] = methodID
}
