package order

import (
	"context"
)

// Repository is the read-only order/subscription read model. Snapshots are
// fully populated up front; the engine never triggers further fetches mid
// calculation.
type Repository interface {
	// GetOrder fetches a fully populated order snapshot by its ID
	GetOrder(ctx context.Context, id string) (*Order, error)

	// ListActiveOrderIDs returns the IDs of orders with at least one active
	// recurring line item, consumed by the forecast batch run
	ListActiveOrderIDs(ctx context.Context) ([]string, error)
}
