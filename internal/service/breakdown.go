package service

import (
	"context"
	"strings"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/tax"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// shippingDiscountMarker is the textual marker left in historical notes when
// a retry charge shipped at a discounted rate. Consulted when the per line
// retry candidates alone do not explain the stored order level amount.
const shippingDiscountMarker = "shipping discount"

// LineItemBreakdown is the reconstructed view of one billed line item
type LineItemBreakdown struct {
	LineItemID    string            `json:"line_item_id"`
	ProductID     string            `json:"product_id"`
	VariantID     *string           `json:"variant_id,omitempty"`
	BaseUnitPrice decimal.Decimal   `json:"base_unit_price"`
	Quantity      int               `json:"quantity"`
	PrepaidCycles int               `json:"prepaid_cycles"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Total         decimal.Decimal   `json:"total"`
	Discounts     types.DiscountMap `json:"discounts,omitempty"`
	TaxAmount     decimal.Decimal   `json:"tax_amount"`
}

// BreakdownResult is the backward path output. Total is guaranteed equal to
// the externally stored ground truth total; ExcludedFromCalculation names the
// discounts whose provenance could not be safely re-attributed.
type BreakdownResult struct {
	BreakdownID    string               `json:"breakdown_id"`
	OrderID        string               `json:"order_id"`
	LineItems      []*LineItemBreakdown `json:"line_items"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	OrderDiscounts types.DiscountMap    `json:"order_discounts,omitempty"`
	Shipping       ShippingBreakdown    `json:"shipping"`
	Tax            *tax.Quote           `json:"tax,omitempty"`
	Total          decimal.Decimal      `json:"total"`

	ExcludedFromCalculation []string `json:"excluded_from_calculation"`
}

// BreakdownService is the backward path: it reconstructs the discount
// breakdown of an already billed order from its stored final amounts.
// It is explanatory, not authoritative: the stored ledger total always wins.
type BreakdownService interface {
	Reconstruct(ctx context.Context, orderID string) (*BreakdownResult, error)
}

type breakdownService struct {
	ServiceParams
}

func NewBreakdownService(params ServiceParams) BreakdownService {
	return &breakdownService{ServiceParams: params}
}

// lineUnwind is the working copy of one line during reconstruction. running
// starts at the stored post discount total and grows as each recorded
// discount is added back in reverse application order.
type lineUnwind struct {
	line      *order.LineItem
	running   decimal.Decimal
	discounts types.DiscountMap
}

func (s *breakdownService) Reconstruct(ctx context.Context, orderID string) (*BreakdownResult, error) {
	ord, err := s.OrderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ord.Validate(); err != nil {
		return nil, err
	}

	result := &BreakdownResult{
		BreakdownID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BREAKDOWN),
		OrderID:                 ord.ID,
		OrderDiscounts:          types.DiscountMap{},
		ExcludedFromCalculation: []string{},
		LineItems:               []*LineItemBreakdown{},
	}

	unwinds := lo.Map(ord.SortedLineItems(), func(li *order.LineItem, _ int) *lineUnwind {
		return &lineUnwind{
			line:      li,
			running:   li.StoredTotal,
			discounts: types.DiscountMap{},
		}
	})

	// Undo discounts in the reverse of the application order, each time adding
	// the discount amount back into the per line base before computing the
	// next older discount's base.
	for _, kind := range types.DiscountUndoOrder() {
		switch kind {
		case types.DiscountRetry:
			s.unwindRetry(ord, unwinds, result)
		case types.DiscountVolume:
			s.unwindVolume(ord, unwinds, result)
		default:
			s.unwindPerLine(kind, unwinds)
		}
	}

	// Order level entries of per line kinds that were never reflected in line
	// totals are carried through for reporting
	for kind, amount := range ord.OrderDiscounts {
		if kind == types.DiscountRetry || kind == types.DiscountVolume {
			continue
		}
		if amount.IsPositive() {
			result.OrderDiscounts[kind] = amount
		}
	}

	s.buildBreakdown(ord, unwinds, result)
	return result, nil
}

func (s *breakdownService) unwindPerLine(kind types.DiscountKind, unwinds []*lineUnwind) {
	for _, uw := range unwinds {
		amount := uw.line.Discounts.Get(kind)
		if !amount.IsPositive() {
			continue
		}
		uw.discounts[kind] = amount
		uw.running = uw.running.Add(amount)
	}
}

// unwindVolume folds an order level volume discount back into the single line
// it applied to; with more than one line the original per line split is not
// retained and the discount is recorded order level, excluded from the
// reconstructed base price.
func (s *breakdownService) unwindVolume(ord *order.Order, unwinds []*lineUnwind, result *BreakdownResult) {
	// per line entries unwind normally
	s.unwindPerLine(types.DiscountVolume, unwinds)

	amount := ord.OrderDiscounts.Get(types.DiscountVolume)
	if !amount.IsPositive() {
		return
	}

	if len(unwinds) == 1 {
		uw := unwinds[0]
		uw.discounts[types.DiscountVolume] = uw.discounts.Get(types.DiscountVolume).Add(amount)
		uw.running = uw.running.Add(amount)
		return
	}

	result.OrderDiscounts[types.DiscountVolume] = amount
	result.ExcludedFromCalculation = append(result.ExcludedFromCalculation, types.DiscountVolume.String())
	s.Logger.Infow("volume discount cannot be re-attributed across multiple lines, recorded order level",
		"order_id", ord.ID,
		"amount", amount,
		"line_count", len(unwinds),
	)
}

// retryCandidate is one reconstruction strategy for splitting the order level
// retry amount back across lines
type retryCandidate struct {
	name   string
	shares []decimal.Decimal
	sum    decimal.Decimal
	// shippingShare is non zero for the variants that explain missing cents
	// through a discounted shipping charge
	shippingShare decimal.Decimal
}

// unwindRetry infers the per line share of the order level retry discount by
// trial computing ranked candidate reconstructions and picking the first
// whose sum matches the stored amount exactly. When no candidate matches the
// retry discount is recorded order level and excluded from calculation.
func (s *breakdownService) unwindRetry(ord *order.Order, unwinds []*lineUnwind, result *BreakdownResult) {
	// per line entries (modern orders) unwind normally
	s.unwindPerLine(types.DiscountRetry, unwinds)

	amount := ord.OrderDiscounts.Get(types.DiscountRetry)
	if !amount.IsPositive() {
		return
	}

	pct := ord.RetryDiscountPercent
	if !pct.IsPositive() {
		pct = s.Config.Pricing.RetryDiscountPercent
	}

	var matches []retryCandidate
	if pct.IsPositive() && pct.LessThan(decimal.NewFromInt(100)) {
		candidates := s.retryCandidates(ord, unwinds, pct)
		matches = lo.Filter(candidates, func(c retryCandidate, _ int) bool {
			return c.sum.Equal(amount)
		})
	}

	if len(matches) == 0 {
		// explicit "cannot be precisely attributed" fallback: the amount is
		// reported but not factored back into the reconstructed base price
		result.OrderDiscounts[types.DiscountRetry] = amount
		result.ExcludedFromCalculation = append(result.ExcludedFromCalculation, types.DiscountRetry.String())
		s.Logger.Warnw("retry discount could not be attributed to lines, recorded order level",
			"order_id", ord.ID,
			"amount", amount,
			"retry_percent", pct,
		)
		return
	}

	if len(matches) > 1 {
		s.Logger.Debugw("multiple retry reconstruction candidates match, using first declared",
			"order_id", ord.ID,
			"candidates", lo.Map(matches, func(c retryCandidate, _ int) string { return c.name }),
		)
	}

	chosen := matches[0]
	for i, uw := range unwinds {
		share := chosen.shares[i]
		if !share.IsPositive() {
			continue
		}
		uw.discounts[types.DiscountRetry] = share
		uw.running = uw.running.Add(share)
	}
	if chosen.shippingShare.IsPositive() {
		result.Shipping.Discount = chosen.shippingShare
	}
}

// retryCandidates builds the ranked candidate list. With post discount total
// T and retry percentage p, the pre retry amount is T/(1-p), so the share is
// T*p/(100-p) under three rounding variants; each variant additionally gets a
// discounted shipping flavor when the historical marker is present.
func (s *breakdownService) retryCandidates(ord *order.Order, unwinds []*lineUnwind, pct decimal.Decimal) []retryCandidate {
	factor := pct.Div(decimal.NewFromInt(100).Sub(pct))

	base := []retryCandidate{
		s.buildCandidate("unit_price", unwinds, func(uw *lineUnwind) decimal.Decimal {
			unitShare := types.RoundExternal(uw.line.StoredUnitPrice.Mul(factor))
			return unitShare.Mul(decimal.NewFromInt(int64(uw.line.Quantity)))
		}),
		s.buildCandidate("round_down", unwinds, func(uw *lineUnwind) decimal.Decimal {
			return uw.running.Mul(factor).RoundDown(types.ExternalPrecision)
		}),
		s.buildCandidate("round_up", unwinds, func(uw *lineUnwind) decimal.Decimal {
			return uw.running.Mul(factor).RoundUp(types.ExternalPrecision)
		}),
	}

	if !ord.StoredShippingAmount.IsPositive() || !s.hasShippingDiscountMarker(ord) {
		return base
	}

	// the missing cents may be explained by a discounted shipping charge
	shippingShare := types.RoundExternal(ord.StoredShippingAmount.Mul(factor))
	withShipping := lo.Map(base, func(c retryCandidate, _ int) retryCandidate {
		return retryCandidate{
			name:          c.name + "_with_shipping",
			shares:        c.shares,
			sum:           c.sum.Add(shippingShare),
			shippingShare: shippingShare,
		}
	})
	return append(base, withShipping...)
}

func (s *breakdownService) buildCandidate(name string, unwinds []*lineUnwind, share func(*lineUnwind) decimal.Decimal) retryCandidate {
	c := retryCandidate{name: name, sum: decimal.Zero}
	for _, uw := range unwinds {
		amount := share(uw)
		c.shares = append(c.shares, amount)
		c.sum = c.sum.Add(amount)
	}
	return c
}

func (s *breakdownService) hasShippingDiscountMarker(ord *order.Order) bool {
	return lo.SomeBy(ord.HistoricalNotes, func(note string) bool {
		return strings.Contains(strings.ToLower(note), shippingDiscountMarker)
	})
}

// buildBreakdown derives base unit prices from the unwound totals, re-derives
// subtotal/shipping/tax/total and reconciles against the stored ground truth.
func (s *breakdownService) buildBreakdown(ord *order.Order, unwinds []*lineUnwind, result *BreakdownResult) {
	lineTotals := decimal.Zero
	for _, uw := range unwinds {
		divisor := decimal.NewFromInt(int64(uw.line.Quantity * uw.line.PrepaidCycles))
		baseUnit := decimal.Zero
		if divisor.IsPositive() {
			baseUnit = types.RoundIntermediate(uw.running.Div(divisor))
		}
		result.LineItems = append(result.LineItems, &LineItemBreakdown{
			LineItemID:    uw.line.ID,
			ProductID:     uw.line.ProductID,
			VariantID:     uw.line.VariantID,
			BaseUnitPrice: baseUnit,
			Quantity:      uw.line.Quantity,
			PrepaidCycles: uw.line.PrepaidCycles,
			Subtotal:      types.RoundExternal(uw.running),
			Total:         uw.line.StoredTotal,
			Discounts:     uw.discounts,
		})
		result.Subtotal = result.Subtotal.Add(uw.running)
		lineTotals = lineTotals.Add(uw.line.StoredTotal)
	}
	result.Subtotal = types.RoundExternal(result.Subtotal)

	result.Shipping.Amount = ord.StoredShippingAmount
	result.Shipping.Total = ord.StoredShippingAmount.Sub(result.Shipping.Discount)
	result.Tax = &tax.Quote{
		TaxAmount: ord.StoredTaxAmount,
		VatAmount: ord.StoredVatAmount,
	}

	// Order level discounts that are excluded from calculation are already
	// reflected in the stored line totals, so they are not subtracted here.
	recomputed := lineTotals.Add(result.Shipping.Total).
		Add(ord.StoredTaxAmount).Add(ord.StoredVatAmount)
	for kind, amount := range result.OrderDiscounts {
		if lo.Contains(result.ExcludedFromCalculation, kind.String()) {
			continue
		}
		recomputed = recomputed.Sub(amount)
	}
	recomputed = types.RoundExternal(types.ClampZero(recomputed))

	if !recomputed.Equal(ord.StoredTotal) {
		// the stored total wins; the mismatch is logged with full context
		s.Logger.Warnw("reconstructed total does not match stored ground truth, stored total wins",
			"order_id", ord.ID,
			"computed_total", recomputed,
			"stored_total", ord.StoredTotal,
			"difference", ord.StoredTotal.Sub(recomputed),
			"line_totals", lineTotals,
			"shipping_total", result.Shipping.Total,
			"tax_amount", ord.StoredTaxAmount,
			"vat_amount", ord.StoredVatAmount,
			"order_discounts", result.OrderDiscounts,
			"excluded_from_calculation", result.ExcludedFromCalculation,
		)
		if s.Sentry != nil {
			s.Sentry.CaptureReconciliationMismatch(ord.ID, recomputed.String(), ord.StoredTotal.String())
		}
	}
	result.Total = ord.StoredTotal
}
