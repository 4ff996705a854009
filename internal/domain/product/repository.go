package product

import (
	"context"
)

// Repository is the read-only product/variant catalog lookup used by the
// pricing engine. Unknown references surface as ErrNotFound; the engine never
// substitutes defaults for missing catalog data.
type Repository interface {
	// GetProduct fetches a product snapshot by its ID
	GetProduct(ctx context.Context, id string) (*Product, error)

	// GetVariant fetches a variant snapshot by its ID
	GetVariant(ctx context.Context, id string) (*Variant, error)
}
