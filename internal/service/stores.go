package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"codeferry/internal/domain"
)

// TransferStore — контракт реестра записей; реализуется
// repository.TransferRepository
type TransferStore interface {
	Create(ctx context.Context, record *domain.TransferRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TransferRecord, error)
	GetActiveByCode(ctx context.Context, code string) (*domain.TransferRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.TransferRecord, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	RecordDownload(ctx context.Context, id uuid.UUID, sizeBytes int64, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ForceExpire(ctx context.Context, id uuid.UUID) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.TransferRecord, error)
}

// AccountStore — контракт каталога аккаунтов; реализуется
// repository.AccountRepository
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Ensure(ctx context.Context, id string) (*domain.Account, error)
	ChargeTransfer(ctx context.Context, id string, deltaBytes int64) (bool, error)
	Refund(ctx context.Context, id string, deltaBytes int64) error
	UpdateSubscription(ctx context.Context, id string, tier domain.Tier, transferLimit int64, expiry *time.Time) error
	ResetCycle(ctx context.Context, id string) error
}
