package shipping

import (
	"context"
)

// Repository is the read-only shipping method lookup
type Repository interface {
	// GetByID fetches a shipping method by its ID
	GetByID(ctx context.Context, id string) (*Method, error)

	// GetLastUsed returns the shipping method last used by the order, nil with
	// no error when the order has no shipping history
	GetLastUsed(ctx context.Context, orderID string) (*Method, error)
}
