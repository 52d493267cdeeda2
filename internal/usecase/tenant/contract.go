package tenant

// Registry answers whether a tenant is known to the system.
type Registry interface {
	ClientExists(tenantID string) (bool, error)
}
