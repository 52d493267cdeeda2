// Package tenant builds validated tenant contexts. The guard is the single
// place a tenant id turns into a scope: everything downstream trusts the
// context it produces and fails closed without one.
package tenant

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Guard validates tenants against the registry.
type Guard struct {
	registry Registry
	logger   *zap.Logger
}

// NewGuard creates a scope guard.
func NewGuard(registry Registry, logger *zap.Logger) *Guard {
	return &Guard{registry: registry, logger: logger}
}

// Scope validates the tenant and returns an immutable context for the
// request. Unknown tenants are rejected before any retrieval starts.
func (g *Guard) Scope(tenantID string, dates domain.DateRange) (domain.TenantContext, error) {
	tc, err := domain.NewTenantContext(tenantID, dates)
	if err != nil {
		return domain.TenantContext{}, err
	}

	exists, err := g.registry.ClientExists(tenantID)
	if err != nil {
		return domain.TenantContext{}, fmt.Errorf("tenant registry lookup: %w", err)
	}
	if !exists {
		g.logger.Warn("Rejected unknown tenant", zap.String("tenant_id", tenantID))
		return domain.TenantContext{}, fmt.Errorf("%w: unknown tenant %q", domain.ErrInvalidTenant, tenantID)
	}

	return tc, nil
}
