package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, zerolog.Nop())

	done := make(chan struct{})
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) error {
			defer close(done)
			assert.Equal(t, domain.AuditActionApproveDeposit, entry.Action)
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		},
	)

	actor := uuid.New()
	reqCtx, cancel := context.WithCancel(context.Background())
	svc.Log(reqCtx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		ActorRole:    domain.RoleAdmin,
		Action:       domain.AuditActionApproveDeposit,
		ResourceType: "transaction",
		ResourceID:   uuid.NewString(),
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, zerolog.Nop())

	done := make(chan struct{})
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.AuditLog) error {
			close(done)
			return errors.New("connection reset")
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{ID: uuid.New(), ActorRole: domain.RoleSystem, Action: domain.AuditActionGuardRun})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not attempted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorRole:    domain.RoleSystem,
			Action:       domain.AuditActionPaymentWebhook,
			ResourceType: "transaction",
			CreatedAt:    time.Now(),
		})
		time.Sleep(20 * time.Millisecond)
	})
}
