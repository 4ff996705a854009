package shipping

import (
	"github.com/shopspring/decimal"
)

// Method is a read-only shipping method snapshot. When ThresholdAmount is
// positive the method switches to ThresholdChargeAmount once the discounted
// order total crosses the threshold.
type Method struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Amount                decimal.Decimal `json:"amount"`
	ThresholdAmount       decimal.Decimal `json:"threshold_amount"`
	ThresholdChargeAmount decimal.Decimal `json:"threshold_charge_amount"`
	TaxPercentage         decimal.Decimal `json:"tax_percentage"`
}

// ChargeFor returns the shipping charge for the given discounted order amount
func (m *Method) ChargeFor(discountedTotal decimal.Decimal) decimal.Decimal {
	if m.ThresholdAmount.IsPositive() && discountedTotal.GreaterThanOrEqual(m.ThresholdAmount) {
		return m.ThresholdChargeAmount
	}
	return m.Amount
}
