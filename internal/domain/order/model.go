package order

import (
	"sort"
	"time"

	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// LineItem is one subscription billing position within an order, either the
// main product or an upsell/add-on. It is rehydrated fresh for each
// calculation from a read-only snapshot; the engine only mutates an in-memory
// working copy during a single calculation pass.
type LineItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	VariantID  *string         `json:"variant_id,omitempty"`
	Quantity   int             `json:"quantity"`
	BasePrice  decimal.Decimal `json:"base_price"`
	IsMain     bool            `json:"is_main"`
	IsAddon    bool            `json:"is_addon"`
	Recurring  bool            `json:"recurring"`
	InsertedAt time.Time       `json:"inserted_at"`

	// NextRecurringDate is the date this line is due to bill next
	NextRecurringDate *time.Time `json:"next_recurring_date,omitempty"`

	// Next-bill configuration
	NextProductID string           `json:"next_product_id,omitempty"`
	NextVariantID *string          `json:"next_variant_id,omitempty"`
	NextQuantity  int              `json:"next_quantity,omitempty"`
	// NextRecurringPrice is an explicit unit price override for the next bill
	NextRecurringPrice *decimal.Decimal `json:"next_recurring_price,omitempty"`
	// NextPriceExcludesBillingModel re-enables the billing model discount when
	// the explicit override was stored without it
	NextPriceExcludesBillingModel bool `json:"next_price_excludes_billing_model,omitempty"`
	// PricePreserved pins the override price across cycles
	PricePreserved bool `json:"price_preserved,omitempty"`

	// Bundle
	IsBundle bool          `json:"is_bundle,omitempty"`
	Children []BundleChild `json:"children,omitempty"`

	// Prepaid: PrepaidCycles > 1 marks the line prepaid. PrepaidCycleIndex is
	// the 1-based current cycle; on the final cycle the unit price is the base
	// price multiplied by the cycle count, on other cycles it bills zero.
	PrepaidCycles     int `json:"prepaid_cycles"`
	PrepaidCycleIndex int `json:"prepaid_cycle_index,omitempty"`

	// Trial workflow: CycleDepth < 0 marks trial/initial depth. A trial step
	// may define its own delayed price and shipping override.
	CycleDepth            int              `json:"cycle_depth"`
	TrialDelayPrice       *decimal.Decimal `json:"trial_delay_price,omitempty"`
	TrialShippingOverride *decimal.Decimal `json:"trial_shipping_override,omitempty"`

	// VolumeDiscountedPrice is a pre-calculated unit price snapshot that
	// already includes the billing model discount
	VolumeDiscountedPrice *decimal.Decimal `json:"volume_discounted_price,omitempty"`

	// ShippingMethodID is a per line shipping method override
	ShippingMethodID *string `json:"shipping_method_id,omitempty"`

	// Stored billed state consumed by the backward path
	StoredUnitPrice decimal.Decimal   `json:"stored_unit_price"`
	StoredTotal     decimal.Decimal   `json:"stored_total"`
	Discounts       types.DiscountMap `json:"discounts,omitempty"`
}

// BundleChild is one component of a per-item priced bundle
type BundleChild struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// IsPrepaid reports whether the line bills on a prepaid multi cycle offer
func (li *LineItem) IsPrepaid() bool {
	return li.PrepaidCycles > 1
}

// IsFinalPrepaidCycle reports whether the current cycle is the one that
// triggers the multiplied prepaid charge
func (li *LineItem) IsFinalPrepaidCycle() bool {
	return li.IsPrepaid() && li.PrepaidCycleIndex >= li.PrepaidCycles
}

// InTrialDelay reports whether the line is inside a trial workflow delay depth
func (li *LineItem) InTrialDelay() bool {
	return li.CycleDepth < 0
}

func (li *LineItem) Validate() error {
	if li.Quantity < 1 {
		return ierr.NewError("line item validation failed").
			WithHint("Quantity must be at least 1").
			WithReportableDetails(map[string]any{"line_item_id": li.ID}).
			Mark(ierr.ErrValidation)
	}
	if li.PrepaidCycles < 1 {
		return ierr.NewError("line item validation failed").
			WithHint("Prepaid cycles must be at least 1").
			WithReportableDetails(map[string]any{"line_item_id": li.ID}).
			Mark(ierr.ErrValidation)
	}
	for kind := range li.Discounts {
		if err := kind.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Order is the aggregate the pricing engine operates on: an ordered list of
// line items, a shipping selection, a tax context and a set of order level
// discounts used when a discount cannot be attributed to a specific line.
type Order struct {
	ID        string          `json:"id"`
	OfferType types.OfferType `json:"offer_type"`

	Address Address `json:"address"`

	// Billing model discount attached to the chosen payment frequency plan.
	// Percent takes precedence over flat when both are set.
	BillingModelPercent decimal.Decimal `json:"billing_model_percent"`
	BillingModelFlat    decimal.Decimal `json:"billing_model_flat"`

	// PrepaidDiscountPercent is granted on prepaid offers, computed from the
	// base unit price and mutually exclusive with the billing model discount.
	PrepaidDiscountPercent decimal.Decimal `json:"prepaid_discount_percent"`

	// IsRebill marks orders eligible for the blanket rebill incentive
	IsRebill bool `json:"is_rebill"`
	// RetryRecovered marks orders whose payment was recovered via retry logic
	RetryRecovered bool `json:"retry_recovered"`

	// RebillDiscountPercent and RetryDiscountPercent override the configured
	// defaults when positive
	RebillDiscountPercent decimal.Decimal `json:"rebill_discount_percent"`
	RetryDiscountPercent  decimal.Decimal `json:"retry_discount_percent"`

	// Coupon evaluation inputs
	CampaignID string  `json:"campaign_id,omitempty"`
	CouponCode *string `json:"coupon_code,omitempty"`
	BxGyID     *string `json:"bxgy_id,omitempty"`

	TaxStrategy types.TaxStrategy `json:"tax_strategy"`

	// CurrentShippingMethodID is the order's current shipping selection; a
	// line item override wins, the last used historical method is the final
	// fallback.
	CurrentShippingMethodID *string `json:"current_shipping_method_id,omitempty"`

	LineItems []*LineItem `json:"line_items"`

	// OrderDiscounts holds discounts recorded at order level
	OrderDiscounts types.DiscountMap `json:"order_discounts,omitempty"`

	// Stored billed state consumed by the backward path. StoredTotal is the
	// ground truth ledger total and is authoritative over any recomputation.
	StoredTotal          decimal.Decimal `json:"stored_total"`
	StoredShippingAmount decimal.Decimal `json:"stored_shipping_amount"`
	StoredTaxAmount      decimal.Decimal `json:"stored_tax_amount"`
	StoredVatAmount      decimal.Decimal `json:"stored_vat_amount"`

	// HistoricalNotes carries free-form billing history markers, consulted by
	// the breakdown reconstructor for the discounted shipping marker.
	HistoricalNotes []string `json:"historical_notes,omitempty"`
}

// Address is the order's tax/shipping address
type Address struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	County  string `json:"county,omitempty"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// SortedLineItems returns the line items with the main item first if present,
// otherwise the earliest inserted upsell first.
func (o *Order) SortedLineItems() []*LineItem {
	items := make([]*LineItem, len(o.LineItems))
	copy(items, o.LineItems)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsMain != items[j].IsMain {
			return items[i].IsMain
		}
		return items[i].InsertedAt.Before(items[j].InsertedAt)
	})
	return items
}

// MainLineItem returns the main line item, nil when the order only carries
// upsells
func (o *Order) MainLineItem() *LineItem {
	for _, li := range o.LineItems {
		if li.IsMain {
			return li
		}
	}
	return nil
}

func (o *Order) Validate() error {
	if err := o.OfferType.Validate(); err != nil {
		return err
	}
	for kind := range o.OrderDiscounts {
		if err := kind.Validate(); err != nil {
			return err
		}
	}
	for _, li := range o.LineItems {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	return nil
}
