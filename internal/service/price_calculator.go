package service

import (
	"context"
	"time"

	"github.com/rebillhq/rebill/internal/domain/coupon"
	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/product"
	"github.com/rebillhq/rebill/internal/domain/shipping"
	"github.com/rebillhq/rebill/internal/domain/tax"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemResult is the per line output shape consumed by the billing
// forecast report and the recurring cron dry run
type LineItemResult struct {
	LineItemID     string              `json:"line_item_id"`
	ProductID      string              `json:"product_id"`
	VariantID      *string             `json:"variant_id,omitempty"`
	UnitPrice      decimal.Decimal     `json:"unit_price"`
	Quantity       int                 `json:"quantity"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	Total          decimal.Decimal     `json:"total"`
	Discounts      types.DiscountMap   `json:"discounts,omitempty"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	PrepaidCycles  int                 `json:"prepaid_cycles,omitempty"`
	BundleChildren []order.BundleChild `json:"bundle_children,omitempty"`
}

// ShippingBreakdown is the shipping part of a calculation result
type ShippingBreakdown struct {
	MethodID  string          `json:"method_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Discount  decimal.Decimal `json:"discount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// CalculationResult is the forward path output. Subtotal, discounts, shipping
// and tax are populated by Calculate and readable afterwards.
type CalculationResult struct {
	CalculationID string            `json:"calculation_id"`
	OrderID       string            `json:"order_id"`
	RecurringDate *time.Time        `json:"recurring_date,omitempty"`
	LineItems     []*LineItemResult `json:"line_items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	// OrderDiscounts holds discounts that could not be attributed to a
	// specific line item; they are subtracted in the order total formula.
	OrderDiscounts types.DiscountMap `json:"order_discounts,omitempty"`
	Shipping       ShippingBreakdown `json:"shipping"`
	Tax            *tax.Quote        `json:"tax,omitempty"`
	Total          decimal.Decimal   `json:"total"`
}

// Discounts aggregates line level and order level discount amounts by kind
func (r *CalculationResult) Discounts() types.DiscountMap {
	out := r.OrderDiscounts.Clone()
	if out == nil {
		out = types.DiscountMap{}
	}
	for _, li := range r.LineItems {
		for kind, amount := range li.Discounts {
			out[kind] = out.Get(kind).Add(amount)
		}
	}
	return out
}

// PriceCalculatorService is the forward path: it predicts the next bill of a
// recurring order before it is charged.
type PriceCalculatorService interface {
	Calculate(ctx context.Context, orderID string, recurringDate *time.Time) (*CalculationResult, error)
}

type priceCalculatorService struct {
	ServiceParams
	pricer LineItemPricerService
	volume VolumeDiscountService
}

func NewPriceCalculatorService(params ServiceParams) PriceCalculatorService {
	return &priceCalculatorService{
		ServiceParams: params,
		pricer:        NewLineItemPricerService(params),
		volume:        NewVolumeDiscountService(params),
	}
}

// lineCalc is the in-memory working copy of one line during a single
// calculation pass; persisted snapshots are never mutated
type lineCalc struct {
	line     *order.LineItem
	resolved *ResolvedLine
	product  *product.Product

	subtotal  decimal.Decimal
	total     decimal.Decimal
	discounts types.DiscountMap
	taxAmount decimal.Decimal
}

type calcState struct {
	ord           *order.Order
	recurringDate *time.Time

	lines            []*lineCalc
	shippable        bool
	shippingMethod   *shipping.Method
	shippingAmount   decimal.Decimal
	shippingDiscount decimal.Decimal
	shippingTax      decimal.Decimal
	orderDiscounts   types.DiscountMap
	taxQuote         *tax.Quote

	// done short circuits the remaining pipeline steps (no eligible lines)
	done bool
}

type calcStep func(ctx context.Context, st *calcState) error

// Calculate runs the fixed calculation pipeline. The step order is critical:
// each step depends on the cumulative state of the previous ones.
func (s *priceCalculatorService) Calculate(ctx context.Context, orderID string, recurringDate *time.Time) (*CalculationResult, error) {
	ord, err := s.OrderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ord.Validate(); err != nil {
		return nil, err
	}

	st := &calcState{
		ord:            ord,
		recurringDate:  recurringDate,
		orderDiscounts: types.DiscountMap{},
	}

	steps := []calcStep{
		s.selectEligibleLines,
		s.priceLines,
		s.resolveShippingMethod,
		s.applyDiscountStack,
		s.computeShipping,
		s.applyCoupon,
		s.computeTax,
	}
	for _, step := range steps {
		if st.done {
			break
		}
		if err := step(ctx, st); err != nil {
			return nil, err
		}
	}

	return s.buildResult(st), nil
}

// selectEligibleLines picks the line items due on the target recurring date
// (or the soonest date when unspecified), main item first
func (s *priceCalculatorService) selectEligibleLines(ctx context.Context, st *calcState) error {
	target := st.recurringDate
	if target == nil {
		for _, li := range st.ord.LineItems {
			if li.NextRecurringDate == nil {
				continue
			}
			if target == nil || li.NextRecurringDate.Before(*target) {
				target = li.NextRecurringDate
			}
		}
	}
	if target == nil {
		st.done = true
		return nil
	}
	st.recurringDate = target

	for _, li := range st.ord.SortedLineItems() {
		if li.NextRecurringDate == nil {
			continue
		}
		if !sameDay(*li.NextRecurringDate, *target) {
			continue
		}
		st.lines = append(st.lines, &lineCalc{
			line:      li,
			discounts: types.DiscountMap{},
		})
	}

	if len(st.lines) == 0 {
		st.done = true
	}
	return nil
}

func (s *priceCalculatorService) priceLines(ctx context.Context, st *calcState) error {
	for _, lc := range st.lines {
		resolved, err := s.pricer.ResolveNextBill(ctx, st.ord, lc.line)
		if err != nil {
			return err
		}
		prod, err := s.ProductRepo.GetProduct(ctx, resolved.ProductID)
		if err != nil {
			return err
		}
		lc.resolved = resolved
		lc.product = prod
		lc.subtotal = types.RoundIntermediate(resolved.UnitPrice.Mul(decimal.NewFromInt(int64(resolved.Quantity))))
		lc.total = lc.subtotal
	}
	return nil
}

// resolveShippingMethod determines shippability and the candidate method:
// line item override, then the order's current method, then the last used
// historical method. The charge itself is deferred until after discounts.
func (s *priceCalculatorService) resolveShippingMethod(ctx context.Context, st *calcState) error {
	// If the main product is non shippable the entire order is non shippable
	// regardless of other items. Deliberate legacy behavior, preserved.
	main := st.ord.MainLineItem()
	if main != nil {
		for _, lc := range st.lines {
			if lc.line.IsMain && !lc.product.Shippable {
				st.shippable = false
				return nil
			}
		}
	}

	shippable := lo.SomeBy(st.lines, func(lc *lineCalc) bool {
		return lc.product.Shippable
	})
	if !shippable {
		st.shippable = false
		return nil
	}
	st.shippable = true

	var methodID *string
	for _, lc := range st.lines {
		if lc.line.ShippingMethodID != nil {
			methodID = lc.line.ShippingMethodID
			break
		}
	}
	if methodID == nil {
		methodID = st.ord.CurrentShippingMethodID
	}

	if methodID != nil {
		method, err := s.ShippingRepo.GetByID(ctx, *methodID)
		if err != nil {
			return err
		}
		st.shippingMethod = method
		return nil
	}

	method, err := s.ShippingRepo.GetLastUsed(ctx, st.ord.ID)
	if err != nil {
		return err
	}
	st.shippingMethod = method
	return nil
}

// applyDiscountStack applies the fixed discount order: billing model and
// prepaid are computed from the base unit price and are mutually exclusive
// per line, volume is spread across eligible lines, rebill and retry compute
// from the current per line total after prior discounts.
func (s *priceCalculatorService) applyDiscountStack(ctx context.Context, st *calcState) error {
	for _, lc := range st.lines {
		// Trial/initial depth retains previously recorded rebill and retry
		// values instead of recomputing them
		if lc.line.InTrialDelay() {
			s.retainTrialDiscounts(lc)
			continue
		}
		s.applyBillingModelDiscount(st.ord, lc)
	}

	if err := s.applyVolumeDiscount(ctx, st); err != nil {
		return err
	}

	for _, lc := range st.lines {
		if lc.line.InTrialDelay() {
			continue
		}
		s.applyPrepaidDiscount(st.ord, lc)
		s.applyPercentDiscount(lc, types.DiscountRebill, s.rebillPercent(st.ord), st.ord.IsRebill)
		s.applyPercentDiscount(lc, types.DiscountRetry, s.retryPercent(st.ord), st.ord.RetryRecovered)
	}
	return nil
}

func (s *priceCalculatorService) applyBillingModelDiscount(ord *order.Order, lc *lineCalc) {
	if !lc.resolved.ApplyBillingModelDiscount || lc.line.IsPrepaid() {
		return
	}

	var amount decimal.Decimal
	qty := decimal.NewFromInt(int64(lc.resolved.Quantity))
	if ord.BillingModelPercent.IsPositive() {
		// per unit discount rounded at source, then multiplied by quantity
		unitDiscount := types.RoundExternal(lc.resolved.UnitPrice.Mul(ord.BillingModelPercent).Div(decimal.NewFromInt(100)))
		amount = unitDiscount.Mul(qty)
	} else if ord.BillingModelFlat.IsPositive() {
		amount = ord.BillingModelFlat.Mul(qty)
	} else {
		return
	}

	amount = decimal.Min(amount, lc.total)
	if amount.IsZero() {
		return
	}
	lc.discounts[types.DiscountBillingModel] = amount
	lc.total = types.ClampZero(lc.total.Sub(amount))
}

func (s *priceCalculatorService) applyVolumeDiscount(ctx context.Context, st *calcState) error {
	if !s.Config.Pricing.VolumeDiscountEnabled {
		return nil
	}
	// Lines priced from a volume discounted snapshot already carry the
	// discount inside the unit price; computing it again would double count.
	hasSnapshot := lo.SomeBy(st.lines, func(lc *lineCalc) bool {
		return lc.line.VolumeDiscountedPrice != nil
	})
	if hasSnapshot {
		return nil
	}

	lines := lo.Map(st.lines, func(lc *lineCalc, _ int) *order.LineItem { return lc.line })
	weights := make(map[string]decimal.Decimal, len(st.lines))
	byID := make(map[string]*lineCalc, len(st.lines))
	for _, lc := range st.lines {
		if lc.total.IsPositive() {
			weights[lc.line.ID] = lc.total
			byID[lc.line.ID] = lc
		}
	}
	if len(weights) == 0 {
		return nil
	}

	dist, err := s.volume.Apply(ctx, lines, weights)
	if err != nil || dist == nil {
		return err
	}

	for id, portion := range dist.DiscountPortions {
		if portion.IsZero() {
			continue
		}
		lc := byID[id]
		lc.discounts[types.DiscountVolume] = portion
		lc.total = types.ClampZero(lc.total.Sub(portion))
	}
	return nil
}

func (s *priceCalculatorService) applyPrepaidDiscount(ord *order.Order, lc *lineCalc) {
	if !lc.line.IsFinalPrepaidCycle() || !ord.PrepaidDiscountPercent.IsPositive() {
		return
	}
	// computed from the base unit price, not the running total
	amount := types.RoundExternal(lc.subtotal.Mul(ord.PrepaidDiscountPercent).Div(decimal.NewFromInt(100)))
	amount = decimal.Min(amount, lc.total)
	if amount.IsZero() {
		return
	}
	lc.discounts[types.DiscountPrepaid] = amount
	lc.total = types.ClampZero(lc.total.Sub(amount))
}

func (s *priceCalculatorService) applyPercentDiscount(lc *lineCalc, kind types.DiscountKind, pct decimal.Decimal, active bool) {
	if !active || !pct.IsPositive() || !lc.total.IsPositive() {
		return
	}
	amount := types.RoundExternal(lc.total.Mul(pct).Div(decimal.NewFromInt(100)))
	if amount.IsZero() {
		return
	}
	lc.discounts[kind] = amount
	lc.total = types.ClampZero(lc.total.Sub(amount))
}

func (s *priceCalculatorService) retainTrialDiscounts(lc *lineCalc) {
	for _, kind := range []types.DiscountKind{types.DiscountRebill, types.DiscountRetry} {
		if lc.line.Discounts.Has(kind) {
			amount := decimal.Min(lc.line.Discounts.Get(kind), lc.total)
			lc.discounts[kind] = amount
			lc.total = types.ClampZero(lc.total.Sub(amount))
		}
	}
}

func (s *priceCalculatorService) rebillPercent(ord *order.Order) decimal.Decimal {
	if ord.RebillDiscountPercent.IsPositive() {
		return ord.RebillDiscountPercent
	}
	return s.Config.Pricing.RebillDiscountPercent
}

func (s *priceCalculatorService) retryPercent(ord *order.Order) decimal.Decimal {
	if ord.RetryDiscountPercent.IsPositive() {
		return ord.RetryDiscountPercent
	}
	return s.Config.Pricing.RetryDiscountPercent
}

// computeShipping charges flat or threshold based shipping on the discounted
// running total; prepaid and trial workflow rules can override or multiply it
func (s *priceCalculatorService) computeShipping(ctx context.Context, st *calcState) error {
	if !st.shippable || st.shippingMethod == nil {
		return nil
	}

	runningTotal := decimal.Zero
	for _, lc := range st.lines {
		runningTotal = runningTotal.Add(lc.total)
	}
	amount := st.shippingMethod.ChargeFor(runningTotal)

	main := st.ord.MainLineItem()
	if main != nil {
		if main.InTrialDelay() && main.TrialShippingOverride != nil {
			amount = *main.TrialShippingOverride
		}
		if st.ord.OfferType == types.OfferTypePrepaid && main.IsFinalPrepaidCycle() {
			amount = amount.Mul(decimal.NewFromInt(int64(main.PrepaidCycles)))
		}
	}

	st.shippingAmount = types.RoundExternal(amount)
	return nil
}

// applyCoupon runs last among discounts because coupon thresholds and
// shipping discounts are computed against the already fixed shipping amount
func (s *priceCalculatorService) applyCoupon(ctx context.Context, st *calcState) error {
	if s.CouponService == nil {
		return nil
	}
	if st.ord.CampaignID == "" && st.ord.CouponCode == nil && st.ord.BxGyID == nil {
		return nil
	}

	req := coupon.EvaluationRequest{
		CampaignID:     st.ord.CampaignID,
		CouponCode:     st.ord.CouponCode,
		BxGyID:         st.ord.BxGyID,
		ShippingAmount: st.shippingAmount,
		LineItems: lo.Map(st.lines, func(lc *lineCalc, _ int) coupon.Line {
			return coupon.Line{
				LineItemID: lc.line.ID,
				ProductID:  lc.resolved.ProductID,
				Quantity:   lc.resolved.Quantity,
				Amount:     lc.total,
			}
		}),
	}

	eval, err := s.CouponService.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if eval == nil || eval.TotalDiscount.IsZero() {
		return nil
	}

	applied := decimal.Zero
	byID := lo.KeyBy(st.lines, func(lc *lineCalc) string { return lc.line.ID })
	for _, ld := range eval.PerLine {
		lc, ok := byID[ld.LineItemID]
		if !ok || ld.Amount.IsZero() {
			continue
		}
		amount := decimal.Min(ld.Amount, lc.total)
		lc.discounts[types.DiscountCoupon] = lc.discounts.Get(types.DiscountCoupon).Add(amount)
		lc.total = types.ClampZero(lc.total.Sub(amount))
		applied = applied.Add(amount)
	}

	st.shippingDiscount = decimal.Min(eval.ShippingDiscount, st.shippingAmount)

	// a remainder that cannot be attributed per line is recorded order level
	residual := eval.TotalDiscount.Sub(applied).Sub(st.shippingDiscount)
	if residual.IsPositive() {
		st.orderDiscounts[types.DiscountCoupon] = residual
	}
	return nil
}

// computeTax computes sales tax and VAT on the taxable subset of the post
// discount, post shipping amounts
func (s *priceCalculatorService) computeTax(ctx context.Context, st *calcState) error {
	taxable := decimal.Zero
	for _, lc := range st.lines {
		if lc.product.Taxable {
			taxable = taxable.Add(lc.total)
		}
	}
	shippingTotal := st.shippingAmount.Sub(st.shippingDiscount)

	if st.ord.TaxStrategy == types.TaxStrategyProvider && s.TaxProvider != nil {
		itemized := lo.Map(st.lines, func(lc *lineCalc, _ int) tax.ItemizedLine {
			return tax.ItemizedLine{
				LineItemID: lc.line.ID,
				ProductID:  lc.resolved.ProductID,
				TaxCode:    lc.product.TaxCode,
				Amount:     lc.total,
				Quantity:   lc.resolved.Quantity,
			}
		})
		quote, err := s.TaxProvider.ComputeTax(ctx, taxable, shippingTotal, itemized, st.ord.Address)
		if err != nil {
			return err
		}
		st.taxQuote = quote
		byID := lo.KeyBy(st.lines, func(lc *lineCalc) string { return lc.line.ID })
		for _, lt := range quote.PerLine {
			if lc, ok := byID[lt.LineItemID]; ok {
				lc.taxAmount = lt.TaxAmount
			}
		}
		return nil
	}

	// manual regional profile
	profile, err := s.TaxProfileRepo.GetProfile(ctx, st.ord.Address)
	if err != nil {
		return err
	}
	if profile == nil {
		st.taxQuote = &tax.Quote{}
		return nil
	}

	quote := &tax.Quote{SalesTaxPercent: profile.SalesTaxPercent, VatPercent: profile.VatPercent}
	if profile.SalesTaxPercent.IsPositive() {
		quote.TaxAmount = types.RoundExternal(taxable.Mul(profile.SalesTaxPercent).Div(decimal.NewFromInt(100)))
		for _, lc := range st.lines {
			if lc.product.Taxable {
				lc.taxAmount = types.RoundExternal(lc.total.Mul(profile.SalesTaxPercent).Div(decimal.NewFromInt(100)))
			}
		}
	}

	// VAT eligibility is gated by a minimum order value keyed to the country
	if profile.VatPercent.IsPositive() {
		preTaxAmount := decimal.Zero
		for _, lc := range st.lines {
			preTaxAmount = preTaxAmount.Add(lc.total)
		}
		preTaxAmount = preTaxAmount.Sub(st.orderDiscounts.Total()).Add(shippingTotal)
		if preTaxAmount.GreaterThanOrEqual(profile.VatMinimumOrderValue) {
			quote.VatAmount = types.RoundExternal(taxable.Mul(profile.VatPercent).Div(decimal.NewFromInt(100)))
		}
	}

	if st.shippingMethod != nil && st.shippingMethod.TaxPercentage.IsPositive() && shippingTotal.IsPositive() {
		st.shippingTax = types.RoundExternal(shippingTotal.Mul(st.shippingMethod.TaxPercentage).Div(decimal.NewFromInt(100)))
		quote.TaxAmount = quote.TaxAmount.Add(st.shippingTax)
		quote.ShippingTaxed = true
	}

	st.taxQuote = quote
	return nil
}

// buildResult assembles the final calculation result. The total is rounded to
// external precision only at this final step.
func (s *priceCalculatorService) buildResult(st *calcState) *CalculationResult {
	result := &CalculationResult{
		CalculationID:  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CALCULATION),
		OrderID:        st.ord.ID,
		RecurringDate:  st.recurringDate,
		OrderDiscounts: st.orderDiscounts,
		Subtotal:       decimal.Zero,
		Total:          decimal.Zero,
		LineItems:      []*LineItemResult{},
	}
	if st.done || len(st.lines) == 0 {
		return result
	}

	lineTotals := decimal.Zero
	for _, lc := range st.lines {
		result.LineItems = append(result.LineItems, &LineItemResult{
			LineItemID:     lc.line.ID,
			ProductID:      lc.resolved.ProductID,
			VariantID:      lc.resolved.VariantID,
			UnitPrice:      lc.resolved.UnitPrice,
			Quantity:       lc.resolved.Quantity,
			Subtotal:       lc.subtotal,
			Total:          types.RoundExternal(lc.total),
			Discounts:      lc.discounts,
			TaxAmount:      lc.taxAmount,
			PrepaidCycles:  lc.line.PrepaidCycles,
			BundleChildren: lc.resolved.BundleChildren,
		})
		result.Subtotal = result.Subtotal.Add(lc.subtotal)
		lineTotals = lineTotals.Add(lc.total)
	}
	result.Subtotal = types.RoundExternal(result.Subtotal)

	shippingTotal := st.shippingAmount.Sub(st.shippingDiscount)
	result.Shipping = ShippingBreakdown{
		Amount:    st.shippingAmount,
		Discount:  st.shippingDiscount,
		TaxAmount: st.shippingTax,
		Total:     shippingTotal,
	}
	if st.shippingMethod != nil {
		result.Shipping.MethodID = st.shippingMethod.ID
	}
	result.Tax = st.taxQuote

	total := lineTotals.Sub(st.orderDiscounts.Total()).Add(shippingTotal)
	if st.taxQuote != nil {
		total = total.Add(st.taxQuote.TaxAmount).Add(st.taxQuote.VatAmount)
	}
	result.Total = types.RoundExternal(types.ClampZero(total))
	return result
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
