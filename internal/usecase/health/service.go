// Package health aggregates component liveness for the readiness endpoint.
package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Pinger checks database connectivity (ISP).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the aggregated health report.
type Status struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Service runs the component checks.
type Service struct {
	pinger   Pinger
	checkers map[string]domain.HealthChecker
	logger   *zap.Logger
}

// New creates the health service. checkers maps component names (embedder,
// llm) onto their probes; nil values are skipped.
func New(pinger Pinger, checkers map[string]domain.HealthChecker, logger *zap.Logger) *Service {
	return &Service{pinger: pinger, checkers: checkers, logger: logger}
}

// Check probes every component. The database is required for healthy;
// provider probes are reported but advisory, since a degraded provider
// still allows refusals and drill-downs.
func (s *Service) Check(ctx context.Context) Status {
	status := Status{Healthy: true, Components: map[string]string{}}

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("Database health check failed", zap.Error(err))
		status.Healthy = false
		status.Components["database"] = err.Error()
	} else {
		status.Components["database"] = "ok"
	}

	for name, checker := range s.checkers {
		if checker == nil {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			status.Components[name] = err.Error()
			continue
		}
		status.Components[name] = "ok"
	}

	return status
}
