package testutil

import (
	"context"
	"sort"

	"github.com/rebillhq/rebill/internal/domain/order"
	ierr "github.com/rebillhq/rebill/internal/errors"
)

// InMemoryOrderStore implements order.Repository
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore[*order.Order](),
	}
}

func (s *InMemoryOrderStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	ord, ok := s.Get(id)
	if !ok {
		return nil, ierr.NewErrorf("order %s not found", id).
			WithHint("Order not found").
			Mark(ierr.ErrNotFound)
	}
	return copyOrder(ord), nil
}

func (s *InMemoryOrderStore) ListActiveOrderIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	for _, ord := range s.List() {
		for _, li := range ord.LineItems {
			if li.Recurring && li.NextRecurringDate != nil {
				ids = append(ids, ord.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// copyOrder returns an independent snapshot so calculations never mutate the
// stored state
func copyOrder(ord *order.Order) *order.Order {
	copied := *ord
	copied.OrderDiscounts = ord.OrderDiscounts.Clone()
	copied.HistoricalNotes = append([]string(nil), ord.HistoricalNotes...)
	copied.LineItems = make([]*order.LineItem, len(ord.LineItems))
	for i, li := range ord.LineItems {
		liCopy := *li
		liCopy.Discounts = li.Discounts.Clone()
		liCopy.Children = append([]order.BundleChild(nil), li.Children...)
		copied.LineItems[i] = &liCopy
	}
	return &copied
}
