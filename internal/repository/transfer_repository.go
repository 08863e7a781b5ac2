package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"codeferry/internal/domain"
)

const uniqueViolation = "23505"

type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create вставляет запись. Уникальность кода среди живых записей
// обеспечивает частичный уникальный индекс: конфликт по нему возвращается
// как domain.ErrCodeTaken, и аллокатор пробует следующий код. Проверка и
// резервирование кода атомарны с созданием записи
func (r *TransferRepository) Create(ctx context.Context, record *domain.TransferRecord) error {
	query := `
        INSERT INTO transfers (
            id, owner_account_id, is_guest, storage_key, display_name,
            mime_type, size_bytes, access_code, status, created_at, expires_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
        )`

	_, err := r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.OwnerAccountID,
		record.IsGuest,
		record.StorageKey,
		record.DisplayName,
		record.MIMEType,
		record.SizeBytes,
		record.AccessCode,
		record.Status,
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrCodeTaken
		}
		return fmt.Errorf("failed to create transfer record: %w", err)
	}

	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TransferRecord, error) {
	var record domain.TransferRecord

	err := r.db.GetContext(ctx, &record,
		`SELECT * FROM transfers WHERE id = $1`,
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer record: %w", err)
	}

	return &record, nil
}

func (r *TransferRepository) GetActiveByCode(ctx context.Context, code string) (*domain.TransferRecord, error) {
	var record domain.TransferRecord

	query := `SELECT * FROM transfers WHERE access_code = $1 AND status = 'active'`
	err := r.db.GetContext(ctx, &record, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer by code: %w", err)
	}

	return &record, nil
}

func (r *TransferRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.TransferRecord, error) {
	var records []domain.TransferRecord

	query := `
        SELECT * FROM transfers
        WHERE owner_account_id = $1 AND status = 'active'
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &records, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	return records, nil
}

func (r *TransferRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete transfer record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// RecordDownload атомарно увеличивает счетчики скачивания. Условие на
// статус и срок повторяет ленивую проверку: гонка со свипом безопасна,
// просроченная запись не инкрементируется
func (r *TransferRepository) RecordDownload(ctx context.Context, id uuid.UUID, sizeBytes int64, now time.Time) (bool, error) {
	query := `
        UPDATE transfers
        SET download_count = download_count + 1,
            total_bytes_served = total_bytes_served + $2
        WHERE id = $1
        AND status = 'active'
        AND expires_at > $3`

	result, err := r.db.ExecContext(ctx, query, id, sizeBytes, now)
	if err != nil {
		return false, fmt.Errorf("failed to record download: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// MarkExpired переводит запись Active -> Expired, только если срок
// действительно прошел; повторный вызов — no-op
func (r *TransferRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
        UPDATE transfers
        SET status = 'expired'
        WHERE id = $1
        AND status = 'active'
        AND expires_at <= $2`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark transfer expired: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// ForceExpire выводит запись из оборота независимо от срока; применяется
// при расхождении реестра и хранилища байтов
func (r *TransferRepository) ForceExpire(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE transfers SET status = 'expired' WHERE id = $1 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to force expire transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

func (r *TransferRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.TransferRecord, error) {
	var records []domain.TransferRecord

	query := `
        SELECT * FROM transfers
        WHERE status = 'active' AND expires_at <= $1
        ORDER BY expires_at`

	err := r.db.SelectContext(ctx, &records, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transfers: %w", err)
	}

	return records, nil
}
