package testutil

import (
	"context"

	"github.com/rebillhq/rebill/internal/domain/product"
	ierr "github.com/rebillhq/rebill/internal/errors"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	products *InMemoryStore[*product.Product]
	variants *InMemoryStore[*product.Variant]
}

func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		products: NewInMemoryStore[*product.Product](),
		variants: NewInMemoryStore[*product.Variant](),
	}
}

func (s *InMemoryProductStore) AddProduct(p *product.Product) {
	s.products.Set(p.ID, p)
}

func (s *InMemoryProductStore) AddVariant(v *product.Variant) {
	s.variants.Set(v.ID, v)
}

func (s *InMemoryProductStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	p, ok := s.products.Get(id)
	if !ok {
		return nil, ierr.NewErrorf("product %s not found", id).
			WithHint("Product not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryProductStore) GetVariant(ctx context.Context, id string) (*product.Variant, error) {
	v, ok := s.variants.Get(id)
	if !ok {
		return nil, ierr.NewErrorf("variant %s not found", id).
			WithHint("Variant not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *v
	return &copied, nil
}

func (s *InMemoryProductStore) Clear() {
	s.products.Clear()
	s.variants.Clear()
}
