package ports

import "context"

// HealthChecker is a dependency reported by GET /health.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is the key used in the health report, e.g. "ledger_store".
	Name() string
}
