package service

import (
	"context"

	"github.com/rebillhq/rebill/internal/domain/order"
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// ResolvedLine is the next-bill pricing outcome for one line item
type ResolvedLine struct {
	LineItemID string
	ProductID  string
	VariantID  *string
	Quantity   int
	UnitPrice  decimal.Decimal

	// ApplyBillingModelDiscount reports whether the billing model discount
	// still applies on top of the resolved unit price. Resolution paths whose
	// price already includes it (volume snapshot) or excludes it by nature
	// (trial delay, prepaid) turn it off.
	ApplyBillingModelDiscount bool

	// PrepaidZeroCycle marks a prepaid line billing zero this cycle because
	// the charge was collected up front
	PrepaidZeroCycle bool

	// BundleChildren carries the components that produced a per item bundle
	// price, for reporting
	BundleChildren []order.BundleChild
}

// LineItemPricerService resolves the next product, variant, quantity and unit
// price for one subscription line given its current state and offer
// configuration. Pure read and compute, no writes.
type LineItemPricerService interface {
	ResolveNextBill(ctx context.Context, ord *order.Order, li *order.LineItem) (*ResolvedLine, error)
}

type lineItemPricerService struct {
	ServiceParams
}

func NewLineItemPricerService(params ServiceParams) LineItemPricerService {
	return &lineItemPricerService{ServiceParams: params}
}

// ResolveNextBill walks the resolution chain in priority order, first match
// wins:
//  1. pre-calculated volume discounted price snapshot
//  2. trial delay price
//  3. recomputed bundle subtotal
//  4. prepaid final cycle multiplier (zero on non final cycles)
//  5. explicit next recurring price override
//  6. variant price, else product price
func (s *lineItemPricerService) ResolveNextBill(ctx context.Context, ord *order.Order, li *order.LineItem) (*ResolvedLine, error) {
	resolved := &ResolvedLine{
		LineItemID: li.ID,
		ProductID:  s.nextProductID(li),
		VariantID:  s.nextVariantID(li),
		Quantity:   s.nextQuantity(li),
	}

	// 1. Volume discounted snapshot, already includes the billing model discount
	if s.Config.Pricing.VolumeDiscountEnabled && li.VolumeDiscountedPrice != nil {
		resolved.UnitPrice = *li.VolumeDiscountedPrice
		return resolved, nil
	}

	// 2. Trial delay price
	if li.InTrialDelay() && li.TrialDelayPrice != nil {
		resolved.UnitPrice = *li.TrialDelayPrice
		return resolved, nil
	}

	prod, err := s.ProductRepo.GetProduct(ctx, resolved.ProductID)
	if err != nil {
		return nil, err
	}

	// 3. Bundle subtotal: fixed price bundles use the product's own price,
	// per item bundles sum child unit prices times child quantities
	if prod.IsBundle || li.IsBundle {
		if prod.BundleFixedPrice {
			resolved.UnitPrice = prod.Price
		} else {
			sum := decimal.Zero
			for _, child := range li.Children {
				sum = sum.Add(child.Price.Mul(decimal.NewFromInt(int64(child.Quantity))))
			}
			resolved.UnitPrice = types.RoundIntermediate(sum)
			resolved.BundleChildren = li.Children
		}
		resolved.ApplyBillingModelDiscount = true
		return resolved, nil
	}

	// 4. Prepaid: the last prepaid cycle charges the base price multiplied by
	// the cycle count, other cycles bill zero (already paid)
	if li.IsPrepaid() {
		if li.IsFinalPrepaidCycle() {
			resolved.UnitPrice = li.BasePrice.Mul(decimal.NewFromInt(int64(li.PrepaidCycles)))
		} else {
			resolved.UnitPrice = decimal.Zero
			resolved.PrepaidZeroCycle = true
		}
		return resolved, nil
	}

	// 5. Explicit next recurring price override
	if li.NextRecurringPrice != nil {
		switch {
		case li.PricePreserved:
			resolved.UnitPrice = *li.NextRecurringPrice
		case !li.IsAddon && li.TrialDelayPrice != nil && li.CycleDepth == 0:
			// first post trial cycle of a trial workflow step with its own price
			resolved.UnitPrice = *li.TrialDelayPrice
		default:
			resolved.UnitPrice = *li.NextRecurringPrice
		}
		// re-enable the billing model discount only when the stored override
		// excludes it
		resolved.ApplyBillingModelDiscount = li.NextPriceExcludesBillingModel
		return resolved, nil
	}

	// 6. Fallback: variant price if set, else product price
	if resolved.VariantID != nil {
		variant, err := s.ProductRepo.GetVariant(ctx, *resolved.VariantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != resolved.ProductID {
			return nil, ierr.NewErrorf("variant %s does not belong to product %s", variant.ID, resolved.ProductID).
				WithHint("Line item references a variant of a different product").
				Mark(ierr.ErrInvalidOperation)
		}
		if variant.Price != nil {
			resolved.UnitPrice = *variant.Price
			resolved.ApplyBillingModelDiscount = true
			return resolved, nil
		}
	}

	resolved.UnitPrice = prod.Price
	resolved.ApplyBillingModelDiscount = true
	return resolved, nil
}

func (s *lineItemPricerService) nextProductID(li *order.LineItem) string {
	if li.NextProductID != "" {
		return li.NextProductID
	}
	return li.ProductID
}

func (s *lineItemPricerService) nextVariantID(li *order.LineItem) *string {
	if li.NextVariantID != nil {
		return li.NextVariantID
	}
	return li.VariantID
}

func (s *lineItemPricerService) nextQuantity(li *order.LineItem) int {
	if li.NextQuantity > 0 {
		return li.NextQuantity
	}
	return li.Quantity
}
