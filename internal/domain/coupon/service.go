package coupon

import (
	"context"

	"github.com/shopspring/decimal"
)

// Line is one order line handed to coupon evaluation
type Line struct {
	LineItemID string          `json:"line_item_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Amount     decimal.Decimal `json:"amount"`
}

// EvaluationRequest is the input to coupon evaluation. The shipping amount
// must already be fixed because coupon thresholds and shipping discounts are
// computed against it.
type EvaluationRequest struct {
	CampaignID     string          `json:"campaign_id"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	BxGyID         *string         `json:"bxgy_id,omitempty"`
	LineItems      []Line          `json:"line_items"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
}

// LineDiscount is a per line coupon discount snapshot
type LineDiscount struct {
	LineItemID string          `json:"line_item_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// EvaluationResult is the coupon evaluation outcome
type EvaluationResult struct {
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	ShippingDiscount decimal.Decimal `json:"shipping_discount"`
	PerLine          []LineDiscount  `json:"per_line,omitempty"`
	IsBuyXGetY       bool            `json:"is_buy_x_get_y"`
}

// Service is the coupon discount evaluation collaborator. Implementations
// live outside this engine; a nil result with no error means no coupon
// applies.
type Service interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error)
}
