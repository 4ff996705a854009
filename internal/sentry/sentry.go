package sentry

import (
	"github.com/getsentry/sentry-go"
	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/logger"
)

// Service wraps the sentry client lifecycle and capture helpers
type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

func NewService(cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{cfg: cfg, logger: log}
}

// Initialize sets up the sentry SDK when enabled
func (s *Service) Initialize() error {
	if !s.cfg.Sentry.Enabled || s.cfg.Sentry.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.cfg.Sentry.DSN,
		Environment:      s.cfg.Sentry.Environment,
		TracesSampleRate: s.cfg.Sentry.SampleRate,
	})
	if err != nil {
		s.logger.Warnw("failed to initialize sentry", "error", err)
		return err
	}
	return nil
}

// CaptureReconciliationMismatch reports a total mismatch between a recomputed
// breakdown and the stored ground truth ledger. The stored value always wins;
// this exists purely for visibility.
func (s *Service) CaptureReconciliationMismatch(orderID string, computed, stored string) {
	if !s.cfg.Sentry.Enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("order_id", orderID)
		scope.SetExtra("computed_total", computed)
		scope.SetExtra("stored_total", stored)
		sentry.CaptureMessage("order breakdown total mismatch")
	})
}

// Flush drains pending events, used on shutdown
func (s *Service) Flush() {
	if s.cfg.Sentry.Enabled {
		sentry.Flush(2e9)
	}
}
