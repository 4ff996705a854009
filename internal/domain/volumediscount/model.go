package volumediscount

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tier is one quantity threshold of the volume discount table. Exactly one of
// Percent or FlatAmount is set.
type Tier struct {
	ID         string           `json:"id"`
	MinUnits   int              `json:"min_units"`
	Percent    *decimal.Decimal `json:"percent,omitempty"`
	FlatAmount *decimal.Decimal `json:"flat_amount,omitempty"`
}

// IsPercent reports whether the tier discounts by percentage
func (t *Tier) IsPercent() bool {
	return t.Percent != nil
}

// Repository is the read-only volume discount configuration lookup
type Repository interface {
	// GetTierForUnitCount returns the highest tier whose MinUnits does not
	// exceed the given unit count, nil with no error when no tier applies
	GetTierForUnitCount(ctx context.Context, units int) (*Tier, error)

	// GetProductWhitelist returns the product IDs eligible for volume
	// discounting; an empty list means all products are eligible
	GetProductWhitelist(ctx context.Context) ([]string, error)
}
