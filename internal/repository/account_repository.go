package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"codeferry/internal/domain"
)

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account

	err := r.db.GetContext(ctx, &account,
		`SELECT * FROM accounts WHERE id = $1`,
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// Ensure возвращает аккаунт, создавая запись бесплатного тарифа, если
// аккаунт встретился впервые
func (r *AccountRepository) Ensure(ctx context.Context, id string) (*domain.Account, error) {
	account, err := r.GetByID(ctx, id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	limits := domain.DefaultTierLimits()[domain.TierFree]
	account = &domain.Account{
		ID:            id,
		Tier:          domain.TierFree,
		TransferLimit: limits.TransferLimit,
	}

	query := `
        INSERT INTO accounts (id, tier, cumulative_transferred, transfer_limit)
        VALUES ($1, $2, 0, $3)
        ON CONFLICT (id) DO UPDATE SET updated_at = accounts.updated_at
        RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Tier,
		account.TransferLimit,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// ChargeTransfer атомарно списывает байты с квоты аккаунта. Возвращает false,
// если списание превысило бы transfer_limit: проверка и инкремент выполняются
// одним условным UPDATE, чтобы два конкурентных запроса не прошли по
// устаревшему остатку
func (r *AccountRepository) ChargeTransfer(ctx context.Context, id string, deltaBytes int64) (bool, error) {
	if deltaBytes < 0 {
		return false, fmt.Errorf("negative charge: %d", deltaBytes)
	}

	query := `
        UPDATE accounts
        SET cumulative_transferred = cumulative_transferred + $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        AND transfer_limit - cumulative_transferred >= $1`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, id)
	if err != nil {
		return false, fmt.Errorf("failed to charge transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Refund возвращает списанные байты после неудачной резервации
func (r *AccountRepository) Refund(ctx context.Context, id string, deltaBytes int64) error {
	query := `
        UPDATE accounts
        SET cumulative_transferred = GREATEST(0, cumulative_transferred - $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, id)
	if err != nil {
		return fmt.Errorf("failed to refund transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("account not found: %s", id)
	}

	return nil
}

// UpdateSubscription меняет тариф; вызывается только сервисом подписок
func (r *AccountRepository) UpdateSubscription(ctx context.Context, id string, tier domain.Tier, transferLimit int64, expiry *time.Time) error {
	query := `
        UPDATE accounts
        SET tier = $1,
            transfer_limit = $2,
            subscription_expiry = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, tier, transferLimit, expiry, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ResetCycle обнуляет счетчик перенесенных байт при старте нового
// биллингового цикла
func (r *AccountRepository) ResetCycle(ctx context.Context, id string) error {
	query := `
        UPDATE accounts
        SET cumulative_transferred = 0,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset cycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
