package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// ForecastRunSummary aggregates the outcome of one batch forecast dry run
type ForecastRunSummary struct {
	OrdersProcessed int             `json:"orders_processed"`
	OrdersFailed    int             `json:"orders_failed"`
	ForecastTotal   decimal.Decimal `json:"forecast_total"`
}

// ForecastRunnerService iterates the active orders and produces next bill
// forecasts, the dry run consumed by the recurring billing cron. Concurrency
// lives here, not in the engine: the calculator is safe for different orders
// in parallel but never invoked concurrently for the same order.
type ForecastRunnerService interface {
	Run(ctx context.Context, concurrency int) (*ForecastRunSummary, error)
}

type forecastRunnerService struct {
	ServiceParams
	calculator PriceCalculatorService
}

func NewForecastRunnerService(params ServiceParams) ForecastRunnerService {
	return &forecastRunnerService{
		ServiceParams: params,
		calculator:    NewPriceCalculatorService(params),
	}
}

func (s *forecastRunnerService) Run(ctx context.Context, concurrency int) (*ForecastRunSummary, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	orderIDs, err := s.OrderRepo.ListActiveOrderIDs(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ForecastRunSummary{ForecastTotal: decimal.Zero}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, orderID := range orderIDs {
		orderID := orderID
		p.Go(func() {
			result, err := s.calculator.Calculate(ctx, orderID, nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.OrdersFailed++
				s.Logger.Errorw("forecast failed", "order_id", orderID, "error", err)
				return
			}
			summary.OrdersProcessed++
			summary.ForecastTotal = summary.ForecastTotal.Add(result.Total)
			s.Logger.Infow("forecast computed",
				"order_id", orderID,
				"recurring_date", result.RecurringDate,
				"total", result.Total,
			)
		})
	}
	p.Wait()

	s.Logger.Infow("forecast run complete",
		"orders_processed", summary.OrdersProcessed,
		"orders_failed", summary.OrdersFailed,
		"forecast_total", summary.ForecastTotal,
	)
	return summary, nil
}
