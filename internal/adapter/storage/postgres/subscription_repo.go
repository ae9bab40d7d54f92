package postgres

import (
	"context"
	"errors"
	"fmt"

	"adwallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// Create inserts a purchased service within the purchase transaction.
func (r *SubscriptionRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.ServiceSubscription) error {
	query := `INSERT INTO service_subscriptions (id, user_id, package_id, total_cost, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, s.ID, s.UserID, s.PackageID, s.TotalCost, s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by UUID.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceSubscription, error) {
	query := `SELECT id, user_id, package_id, total_cost, status, created_at
		FROM service_subscriptions WHERE id = $1`

	s := &domain.ServiceSubscription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.PackageID, &s.TotalCost, &s.Status, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}
	return s, nil
}
