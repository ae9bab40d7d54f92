package postgres

import (
	"context"
	"fmt"
)

// HealthCheck reports whether the ledger store answers queries.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ledger store ping: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "ledger_store" }
