package service

import (
	"context"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/volumediscount"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// VolumeDiscountService determines whether a tiered quantity based discount
// applies to a set of line items and spreads it across them.
type VolumeDiscountService interface {
	// GetDiscountForItemCount returns the applicable tier for the given total
	// unit count, nil when no tier applies
	GetDiscountForItemCount(ctx context.Context, totalUnits int) (*volumediscount.Tier, error)

	// EligibleUnitCount sums units over the line items that participate in
	// volume discounting, honoring the non recurring exclusion and the
	// product whitelist
	EligibleUnitCount(ctx context.Context, lines []*order.LineItem) (int, error)

	// Apply computes the volume discount for the given weighted line amounts
	// and distributes it proportionally. Returns nil when no tier applies.
	Apply(ctx context.Context, lines []*order.LineItem, weights map[string]decimal.Decimal) (*DistributionResult, error)
}

type volumeDiscountService struct {
	ServiceParams
}

func NewVolumeDiscountService(params ServiceParams) VolumeDiscountService {
	return &volumeDiscountService{ServiceParams: params}
}

func (s *volumeDiscountService) GetDiscountForItemCount(ctx context.Context, totalUnits int) (*volumediscount.Tier, error) {
	if !s.Config.Pricing.VolumeDiscountEnabled || totalUnits <= 0 {
		return nil, nil
	}
	return s.VolumeDiscountRepo.GetTierForUnitCount(ctx, totalUnits)
}

func (s *volumeDiscountService) EligibleUnitCount(ctx context.Context, lines []*order.LineItem) (int, error) {
	whitelist, err := s.VolumeDiscountRepo.GetProductWhitelist(ctx)
	if err != nil {
		return 0, err
	}

	units := 0
	for _, li := range lines {
		if s.Config.Pricing.VolumeDiscountExcludeNonRecurring && !li.Recurring {
			continue
		}
		if len(whitelist) > 0 && !lo.Contains(whitelist, li.ProductID) {
			continue
		}
		units += li.Quantity
	}
	return units, nil
}

func (s *volumeDiscountService) Apply(ctx context.Context, lines []*order.LineItem, weights map[string]decimal.Decimal) (*DistributionResult, error) {
	totalUnits, err := s.EligibleUnitCount(ctx, lines)
	if err != nil {
		return nil, err
	}

	tier, err := s.GetDiscountForItemCount(ctx, totalUnits)
	if err != nil || tier == nil {
		return nil, err
	}
	if len(weights) == 0 {
		return nil, nil
	}

	// The tier discount is applied to the blended per unit price across all
	// eligible keys, then the resulting aggregate is apportioned back to the
	// original per key weights.
	blended := BlendedUnitPrice(weights, totalUnits)
	if blended.IsZero() {
		return nil, nil
	}

	if tier.IsPercent() {
		result, err := DistributeDiscount(weights, *tier.Percent, true)
		if err != nil {
			return nil, err
		}
		s.Logger.Debugw("volume discount applied",
			"tier_id", tier.ID,
			"total_units", totalUnits,
			"blended_unit_price", blended,
			"total_discount", result.TotalDiscount,
		)
		return result, nil
	}

	result, err := DistributeDiscount(weights, *tier.FlatAmount, false)
	if err != nil {
		return nil, err
	}
	s.Logger.Debugw("volume discount applied",
		"tier_id", tier.ID,
		"total_units", totalUnits,
		"blended_unit_price", blended,
		"total_discount", result.TotalDiscount,
	)
	return result, nil
}
