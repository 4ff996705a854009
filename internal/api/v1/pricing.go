package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rebillhq/rebill/internal/api/dto"
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/logger"
	"github.com/rebillhq/rebill/internal/service"
)

type PricingHandler struct {
	calculator service.PriceCalculatorService
	breakdown  service.BreakdownService
	logger     *logger.Logger
}

func NewPricingHandler(
	calculator service.PriceCalculatorService,
	breakdown service.BreakdownService,
	logger *logger.Logger,
) *PricingHandler {
	return &PricingHandler{
		calculator: calculator,
		breakdown:  breakdown,
		logger:     logger,
	}
}

// Forecast computes the next bill forecast for an order
func (h *PricingHandler) Forecast(c *gin.Context) {
	var req dto.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ierr.Hint(err)})
		return
	}

	result, err := h.calculator.Calculate(c.Request.Context(), req.OrderID, req.RecurringDate)
	if err != nil {
		h.handleError(c, err, "failed to compute forecast", req.OrderID)
		return
	}

	c.JSON(http.StatusOK, dto.ForecastResponse{CalculationResult: result})
}

// Breakdown reconstructs the discount breakdown of a billed order
func (h *PricingHandler) Breakdown(c *gin.Context) {
	var req dto.BreakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ierr.Hint(err)})
		return
	}

	result, err := h.breakdown.Reconstruct(c.Request.Context(), req.OrderID)
	if err != nil {
		h.handleError(c, err, "failed to reconstruct breakdown", req.OrderID)
		return
	}

	c.JSON(http.StatusOK, dto.BreakdownResponse{BreakdownResult: result})
}

func (h *PricingHandler) handleError(c *gin.Context, err error, msg, orderID string) {
	h.logger.Errorw(msg, "order_id", orderID, "error", err)
	status := http.StatusInternalServerError
	switch {
	case ierr.IsNotFound(err):
		status = http.StatusNotFound
	case ierr.IsValidation(err), ierr.IsInvalidOperation(err):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": ierr.Hint(err)})
}
