package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"codeferry/internal/domain"
	"codeferry/internal/service/s3"
)

// LedgerService — ядро реестра трансферов: владеет записями и счетчиками,
// применяет QuotaPolicy вокруг каждой мутации и переводит записи по
// состояниям Active -> Expired -> Deleted
type LedgerService struct {
	transfers TransferStore
	accounts  AccountStore
	policy    *QuotaPolicy
	codes     *CodeAllocator
	blobs     s3.Storage
	now       func() time.Time

	// StorageKeyFunc выдает ключ хранилища для новой записи
	StorageKeyFunc func(id uuid.UUID) string
}

func NewLedgerService(
	transfers TransferStore,
	accounts AccountStore,
	policy *QuotaPolicy,
	codes *CodeAllocator,
	blobs s3.Storage,
	clock func() time.Time,
) *LedgerService {
	if clock == nil {
		clock = time.Now
	}

	return &LedgerService{
		transfers:      transfers,
		accounts:       accounts,
		policy:         policy,
		codes:          codes,
		blobs:          blobs,
		now:            clock,
		StorageKeyFunc: defaultStorageKey,
	}
}

func defaultStorageKey(id uuid.UUID) string {
	return fmt.Sprintf("transfer_files/%s", id.String())
}

// ReserveUpload проверяет квоту, выделяет код и создает запись. Квота
// аккаунта списывается в момент резервации, а не после окончания потока
// байтов: иначе две конкурентные резервации прошли бы по устаревшему
// остатку. При отказе ничего не создается; при сбое выделения кода
// списание возвращается, так что резервация либо фиксируется целиком,
// либо целиком отменяется
func (s *LedgerService) ReserveUpload(
	ctx context.Context,
	accountID *string,
	displayName string,
	mimeType string,
	sizeBytes int64,
) (*domain.TransferRecord, *domain.QuotaDecision, error) {
	if sizeBytes < 0 {
		return nil, nil, fmt.Errorf("invalid size: %d", sizeBytes)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var actor *domain.Account
	if accountID != nil {
		var err error
		actor, err = s.accounts.Ensure(ctx, *accountID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve account: %w", err)
		}
	}

	decision := s.policy.DecideUpload(actor, sizeBytes)
	if !decision.Allowed {
		return nil, &decision, nil
	}

	// Списываем квоту условным обновлением: это авторитетная проверка,
	// решение политики выше могло устареть
	charged := false
	if actor != nil {
		applied, err := s.accounts.ChargeTransfer(ctx, actor.ID, sizeBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to charge quota: %w", err)
		}
		if !applied {
			fresh, err := s.accounts.GetByID(ctx, actor.ID)
			if err != nil {
				fresh = actor
			}
			denial := domain.Deny(domain.DenyReasonCumulativeQuota, fresh.TransferLimit, fresh.CumulativeTransferred)
			return nil, &denial, nil
		}
		charged = true
	}

	now := s.now()
	record := &domain.TransferRecord{
		ID:             uuid.New(),
		OwnerAccountID: accountID,
		IsGuest:        accountID == nil,
		DisplayName:    displayName,
		MIMEType:       mimeType,
		SizeBytes:      sizeBytes,
		Status:         domain.TransferStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.TransferTTL),
	}
	record.StorageKey = s.StorageKeyFunc(record.ID)

	_, err := s.codes.Allocate(ctx, func(ctx context.Context, code string) error {
		record.AccessCode = code
		return s.transfers.Create(ctx, record)
	})
	if err != nil {
		if charged {
			if refundErr := s.accounts.Refund(ctx, actor.ID, sizeBytes); refundErr != nil {
				log.Printf("[Ledger] failed to refund %d bytes for account %s: %v", sizeBytes, actor.ID, refundErr)
			}
		}
		return nil, nil, err
	}

	return record, nil, nil
}

// AbortReservation откатывает резервацию, байты которой так и не легли в
// хранилище: запись удаляется, списанная квота возвращается
func (s *LedgerService) AbortReservation(ctx context.Context, record *domain.TransferRecord) {
	if _, err := s.transfers.Delete(ctx, record.ID); err != nil {
		log.Printf("[Ledger] failed to delete aborted record %s: %v", record.ID, err)
	}

	if record.OwnerAccountID != nil {
		if err := s.accounts.Refund(ctx, *record.OwnerAccountID, record.SizeBytes); err != nil {
			log.Printf("[Ledger] failed to refund %d bytes for account %s: %v", record.SizeBytes, *record.OwnerAccountID, err)
		}
	}
}

// RecordDownload повторно проверяет срок, спрашивает политику за владельца
// и атомарно двигает счетчики записи и квоту владельца
func (s *LedgerService) RecordDownload(ctx context.Context, record *domain.TransferRecord) (*domain.QuotaDecision, error) {
	now := s.now()

	// Ленивая проверка срока: результат обязан совпадать со свипом,
	// даже если свип еще не добежал
	if record.ExpiredAt(now) {
		if _, err := s.transfers.MarkExpired(ctx, record.ID, now); err != nil {
			log.Printf("[Ledger] failed to mark record %s expired: %v", record.ID, err)
		}
		return nil, domain.ErrExpired
	}

	charged := false
	var owner *domain.Account
	if record.OwnerAccountID != nil {
		var err error
		owner, err = s.accounts.GetByID(ctx, *record.OwnerAccountID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to get record owner: %w", err)
		}
	}

	if owner != nil {
		decision := s.policy.DecideDownload(record, owner)
		if !decision.Allowed {
			return &decision, nil
		}

		applied, err := s.accounts.ChargeTransfer(ctx, owner.ID, record.SizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to charge owner quota: %w", err)
		}
		if !applied {
			fresh, err := s.accounts.GetByID(ctx, owner.ID)
			if err != nil {
				fresh = owner
			}
			denial := domain.Deny(domain.DenyReasonCumulativeQuota, fresh.TransferLimit, fresh.CumulativeTransferred)
			return &denial, nil
		}
		charged = true
	}

	applied, err := s.transfers.RecordDownload(ctx, record.ID, record.SizeBytes, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Запись успела истечь между проверкой и инкрементом
		if charged {
			if refundErr := s.accounts.Refund(ctx, owner.ID, record.SizeBytes); refundErr != nil {
				log.Printf("[Ledger] failed to refund %d bytes for account %s: %v", record.SizeBytes, owner.ID, refundErr)
			}
		}
		return nil, domain.ErrExpired
	}

	record.DownloadCount++
	record.TotalBytesServed += record.SizeBytes

	return nil, nil
}

// Delete удаляет запись. Запись с владельцем удаляет только владелец;
// гостевую запись может удалить любой, кто знает ее id
func (s *LedgerService) Delete(ctx context.Context, recordID uuid.UUID, actorID *string) error {
	record, err := s.transfers.GetByID(ctx, recordID)
	if err != nil {
		return err
	}

	if record.OwnerAccountID != nil {
		if actorID == nil || *actorID != *record.OwnerAccountID {
			return domain.ErrUnauthorized
		}
	}

	// Сначала освобождаем байты; ошибку хранилища только логируем,
	// чтобы осиротевшая запись не блокировала удаление
	if err := s.blobs.DeleteObject(record.StorageKey); err != nil {
		log.Printf("[Ledger] warning: failed to delete blob %s: %v", record.StorageKey, err)
	}

	deleted, err := s.transfers.Delete(ctx, recordID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	return nil
}

// ListOwned возвращает живые записи аккаунта, новые первыми
func (s *LedgerService) ListOwned(ctx context.Context, accountID string) ([]domain.TransferRecord, error) {
	return s.transfers.ListByOwner(ctx, accountID)
}

// SweepExpired переводит просроченные записи в Expired и освобождает их
// байты и коды. Идемпотентна и безопасна при конкурентном запуске:
// переход делает условное обновление, уже истекшие записи — no-op
func (s *LedgerService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.transfers.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired transfers: %w", err)
	}

	count := 0
	for _, record := range expired {
		transitioned, err := s.transfers.MarkExpired(ctx, record.ID, now)
		if err != nil {
			log.Printf("[Ledger] failed to expire record %s: %v", record.ID, err)
			continue
		}
		if !transitioned {
			// Конкурентный свип успел раньше
			continue
		}

		if err := s.blobs.DeleteObject(record.StorageKey); err != nil {
			log.Printf("[Ledger] warning: failed to delete blob %s: %v", record.StorageKey, err)
		}
		count++
	}

	return count, nil
}
