package service

import (
	"sort"

	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// DistributionResult holds the per key outcome of spreading an aggregate
// discount across a weighted key set.
type DistributionResult struct {
	// DiscountedPrices maps each key to its weight minus its discount portion
	DiscountedPrices map[string]decimal.Decimal

	// DiscountPortions maps each key to its share of the aggregate discount.
	// The portions always sum to TotalDiscount exactly.
	DiscountPortions map[string]decimal.Decimal

	// TotalDiscount is the aggregate discount that was distributed
	TotalDiscount decimal.Decimal
}

// DistributeDiscount splits an aggregate discount across a weighted key set
// proportionally without leaking or duplicating cents. When isPercent is true
// the discount is a percentage applied to the summed weights, otherwise it is
// a flat amount capped at the summed weights.
//
// Keys are apportioned in lexical order and the last key absorbs any rounding
// residual, so the sum of the portions equals the aggregate discount exactly.
func DistributeDiscount(weights map[string]decimal.Decimal, discount decimal.Decimal, isPercent bool) (*DistributionResult, error) {
	if len(weights) == 0 {
		return nil, ierr.NewError("cannot distribute discount over empty weight set").
			WithHint("At least one weight key is required").
			Mark(ierr.ErrValidation)
	}
	if discount.IsNegative() {
		return nil, ierr.NewError("discount amount cannot be negative").
			Mark(ierr.ErrValidation)
	}

	keys := make([]string, 0, len(weights))
	totalWeight := decimal.Zero
	for key, weight := range weights {
		keys = append(keys, key)
		totalWeight = totalWeight.Add(weight)
	}
	sort.Strings(keys)

	aggregate := discount
	if isPercent {
		aggregate = types.RoundExternal(totalWeight.Mul(discount).Div(decimal.NewFromInt(100)))
	}
	if aggregate.GreaterThan(totalWeight) {
		aggregate = totalWeight
	}
	aggregate = types.RoundExternal(aggregate)

	result := &DistributionResult{
		DiscountedPrices: make(map[string]decimal.Decimal, len(weights)),
		DiscountPortions: make(map[string]decimal.Decimal, len(weights)),
		TotalDiscount:    aggregate,
	}

	if totalWeight.IsZero() || aggregate.IsZero() {
		for _, key := range keys {
			result.DiscountPortions[key] = decimal.Zero
			result.DiscountedPrices[key] = weights[key]
		}
		result.TotalDiscount = decimal.Zero
		return result, nil
	}

	distributed := decimal.Zero
	for i, key := range keys {
		var portion decimal.Decimal
		if i == len(keys)-1 {
			// last key absorbs the rounding residual
			portion = aggregate.Sub(distributed)
		} else {
			portion = types.RoundExternal(aggregate.Mul(weights[key]).Div(totalWeight))
		}
		result.DiscountPortions[key] = portion
		result.DiscountedPrices[key] = weights[key].Sub(portion)
		distributed = distributed.Add(portion)
	}

	return result, nil
}

// BlendedUnitPrice computes the single blended per unit price across a
// weighted key set, given the total unit count behind the weights.
func BlendedUnitPrice(weights map[string]decimal.Decimal, totalUnits int) decimal.Decimal {
	if totalUnits <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, weight := range weights {
		total = total.Add(weight)
	}
	return types.RoundIntermediate(total.Div(decimal.NewFromInt(int64(totalUnits))))
}
