package tax

import (
	"context"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Quote is the tax result for one order calculation
type Quote struct {
	SalesTaxPercent decimal.Decimal `json:"sales_tax_percent"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	VatPercent      decimal.Decimal `json:"vat_percent"`
	VatAmount       decimal.Decimal `json:"vat_amount"`
	ShippingTaxed   bool            `json:"shipping_taxed"`
	PerLine         []LineTax       `json:"per_line,omitempty"`
}

// LineTax is a per line tax override returned by providers that itemize
type LineTax struct {
	LineItemID string          `json:"line_item_id"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
}

// ItemizedLine is the per line input handed to an external tax provider
type ItemizedLine struct {
	LineItemID string          `json:"line_item_id"`
	ProductID  string          `json:"product_id"`
	TaxCode    string          `json:"tax_code,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Quantity   int             `json:"quantity"`
}

// Provider computes tax via an external tax service given itemized product,
// tax code and shipping data. Implementations live outside this engine.
type Provider interface {
	ComputeTax(ctx context.Context, taxableAmount, shippingAmount decimal.Decimal, lines []ItemizedLine, addr order.Address) (*Quote, error)
}

// RegionalProfile is a manually configured sales tax / VAT profile keyed by
// country/state/county/city. VAT eligibility is gated by a minimum order value
// keyed to the order's country.
type RegionalProfile struct {
	Country              string          `json:"country"`
	State                string          `json:"state,omitempty"`
	County               string          `json:"county,omitempty"`
	City                 string          `json:"city,omitempty"`
	SalesTaxPercent      decimal.Decimal `json:"sales_tax_percent"`
	VatPercent           decimal.Decimal `json:"vat_percent"`
	VatMinimumOrderValue decimal.Decimal `json:"vat_minimum_order_value"`
}

// ProfileRepository looks up manual regional tax profiles. A missing profile
// is a legitimate zero tax result, returned as nil with no error.
type ProfileRepository interface {
	GetProfile(ctx context.Context, addr order.Address) (*RegionalProfile, error)
}
