package types

import (
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/shopspring/decimal"
)

// DiscountKind identifies one of the fixed discount kinds an order or line
// item can carry. The set is closed; unknown kinds are rejected at the
// boundary instead of being silently accepted.
type DiscountKind string

const (
	// DiscountBillingModel is the percent/flat discount tied to the chosen
	// payment frequency plan. Mutually exclusive with DiscountPrepaid per line.
	DiscountBillingModel DiscountKind = "billing_model"

	// DiscountVolume is the tiered discount keyed to total purchased unit count
	DiscountVolume DiscountKind = "volume"

	// DiscountPrepaid is the discount granted on prepaid multi cycle offers
	DiscountPrepaid DiscountKind = "prepaid"

	// DiscountRebill is the blanket rebill incentive percentage
	DiscountRebill DiscountKind = "rebill"

	// DiscountRetry is the percentage applied when a payment was recovered
	// via retry logic
	DiscountRetry DiscountKind = "retry"

	// DiscountCoupon is the campaign coupon discount, always applied last
	DiscountCoupon DiscountKind = "coupon"
)

// DiscountApplicationOrder is the canonical forward application order.
// Each discount's base depends on the cumulative effect of prior ones, so the
// order is a static global rule, identical in the forward and backward paths.
// Billing model and prepaid are both computed from the base unit price and are
// mutually exclusive per line, so only their position relative to the running
// total discounts matters.
var DiscountApplicationOrder = []DiscountKind{
	DiscountBillingModel,
	DiscountVolume,
	DiscountPrepaid,
	DiscountRebill,
	DiscountRetry,
	DiscountCoupon,
}

// DiscountUndoOrder returns the reverse of DiscountApplicationOrder, the
// order in which the breakdown reconstructor unwinds recorded discounts.
func DiscountUndoOrder() []DiscountKind {
	out := make([]DiscountKind, len(DiscountApplicationOrder))
	for i, k := range DiscountApplicationOrder {
		out[len(DiscountApplicationOrder)-1-i] = k
	}
	return out
}

func (k DiscountKind) String() string {
	return string(k)
}

func (k DiscountKind) Validate() error {
	switch k {
	case DiscountBillingModel, DiscountVolume, DiscountPrepaid,
		DiscountRebill, DiscountRetry, DiscountCoupon:
		return nil
	}
	return ierr.NewErrorf("unknown discount kind: %s", k).
		WithHint("Discount kind must be one of the fixed discount catalog").
		Mark(ierr.ErrValidation)
}

// DiscountMap maps discount kinds to amounts for a single owner (order or
// line item). Kind names are unique per owner; storage order is irrelevant,
// the application order is DiscountApplicationOrder.
type DiscountMap map[DiscountKind]decimal.Decimal

// Set records an amount for a kind, rejecting unknown kinds
func (m DiscountMap) Set(kind DiscountKind, amount decimal.Decimal) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	m[kind] = amount
	return nil
}

// Get returns the recorded amount for a kind, zero when absent
func (m DiscountMap) Get(kind DiscountKind) decimal.Decimal {
	if amount, ok := m[kind]; ok {
		return amount
	}
	return decimal.Zero
}

// Has reports whether a non zero amount is recorded for the kind
func (m DiscountMap) Has(kind DiscountKind) bool {
	amount, ok := m[kind]
	return ok && !amount.IsZero()
}

// Total sums all recorded discount amounts
func (m DiscountMap) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range m {
		total = total.Add(amount)
	}
	return total
}

// Clone returns an independent copy of the map
func (m DiscountMap) Clone() DiscountMap {
	out := make(DiscountMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
