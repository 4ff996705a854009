package product

import (
	"github.com/shopspring/decimal"
)

// Product is a read-only catalog snapshot of a sellable product
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	TaxCode     string          `json:"tax_code,omitempty"`
	Taxable     bool            `json:"taxable"`
	Shippable   bool            `json:"shippable"`
	IsBundle    bool            `json:"is_bundle"`
	// BundleFixedPrice marks a bundle sold at the product's own price instead
	// of the sum of its component prices
	BundleFixedPrice bool `json:"bundle_fixed_price"`
}

// Variant is a read-only catalog snapshot of a product variant. Price is nil
// when the variant inherits the product price.
type Variant struct {
	ID        string           `json:"id"`
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}
