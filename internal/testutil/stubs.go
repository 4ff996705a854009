package testutil

import (
	"context"

	"github.com/rebillhq/rebill/internal/domain/coupon"
	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// StubCouponService implements coupon.Service with a canned result
type StubCouponService struct {
	Result *coupon.EvaluationResult
	Err    error
	// LastRequest captures the most recent evaluation request for assertions
	LastRequest *coupon.EvaluationRequest
}

func (s *StubCouponService) Evaluate(ctx context.Context, req coupon.EvaluationRequest) (*coupon.EvaluationResult, error) {
	s.LastRequest = &req
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

// StubTaxProvider implements tax.Provider with a fixed rate
type StubTaxProvider struct {
	RatePercent decimal.Decimal
	Err         error
}

func (s *StubTaxProvider) ComputeTax(ctx context.Context, taxableAmount, shippingAmount decimal.Decimal, lines []tax.ItemizedLine, addr order.Address) (*tax.Quote, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	quote := &tax.Quote{
		SalesTaxPercent: s.RatePercent,
		TaxAmount:       taxableAmount.Mul(s.RatePercent).Div(decimal.NewFromInt(100)).Round(2),
	}
	for _, line := range lines {
		quote.PerLine = append(quote.PerLine, tax.LineTax{
			LineItemID: line.LineItemID,
			TaxAmount:  line.Amount.Mul(s.RatePercent).Div(decimal.NewFromInt(100)).Round(2),
		})
	}
	return quote, nil
}
