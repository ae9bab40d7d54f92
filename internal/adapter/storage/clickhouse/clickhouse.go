package clickhouse

import (
	"context"
	"fmt"
	"time"

	"adwallet/config"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// NewConnection opens the insight store and verifies connectivity.
func NewConnection(cfg config.ClickHouseConfig, log zerolog.Logger) (*sqlx.DB, error) {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	db, err := sqlx.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("insight store connected")
	return db, nil
}

// HealthCheck implements ports.HealthChecker for ClickHouse.
type HealthCheck struct {
	db *sqlx.DB
}

// NewHealthCheck creates a ClickHouse health checker.
func NewHealthCheck(db *sqlx.DB) *HealthCheck {
	return &HealthCheck{db: db}
}

// Ping checks ClickHouse connectivity.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *HealthCheck) Name() string { return "insight_store" }
