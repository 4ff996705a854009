package dto

import (
	"time"

	"github.com/rebillhq/rebill/internal/service"
	"github.com/rebillhq/rebill/internal/validator"
)

// ForecastRequest asks for the next bill forecast of one order
type ForecastRequest struct {
	OrderID string `json:"order_id" validate:"required"`

	// RecurringDate targets a specific recurring date; the soonest date is
	// used when omitted
	RecurringDate *time.Time `json:"recurring_date,omitempty"`
}

func (r *ForecastRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ForecastResponse is the forward path result
type ForecastResponse struct {
	*service.CalculationResult
}

// BreakdownRequest asks for the discount breakdown of an already billed order
type BreakdownRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (r *BreakdownRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// BreakdownResponse is the backward path result
type BreakdownResponse struct {
	*service.BreakdownResult
}
