package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"codeferry/internal/domain"
	"codeferry/internal/service/s3"
)

// ResolverService превращает код доступа в запись и в поток байтов.
// Код — единственный секрет получателя, поэтому все несуществующие и
// невалидные коды неотличимы друг от друга: всегда ErrNotFound
type ResolverService struct {
	transfers TransferStore
	ledger    *LedgerService
	blobs     s3.Storage

	// alertf получает сообщения о расхождении реестра и хранилища
	alertf func(format string, args ...any)
}

func NewResolverService(transfers TransferStore, ledger *LedgerService, blobs s3.Storage) *ResolverService {
	return &ResolverService{
		transfers: transfers,
		ledger:    ledger,
		blobs:     blobs,
		alertf:    log.Printf,
	}
}

// normalizeCode отсекает мусорный ввод до похода в базу
func normalizeCode(code string) (string, error) {
	if len(code) != 6 {
		return "", domain.ErrNotFound
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", domain.ErrNotFound
		}
	}
	return code, nil
}

// ResolveInfo возвращает метаданные записи по коду без побочных эффектов:
// счетчики не двигаются, квота не списывается
func (s *ResolverService) ResolveInfo(ctx context.Context, code string) (*domain.TransferRecord, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	record, err := s.transfers.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if record.ExpiredAt(s.ledger.now()) {
		return nil, domain.ErrExpired
	}

	return record, nil
}

// ResolveDownload разрешает код в поток байтов. Учет скачивания идет через
// реестр до открытия потока; если хранилище потеряло объект при живой
// записи, запись принудительно гасится и поднимается тревога. Квота,
// списанная за это скачивание, не возвращается
func (s *ResolverService) ResolveDownload(ctx context.Context, code string) (*domain.TransferRecord, s3.S3Object, *domain.QuotaDecision, error) {
	record, decision, err := s.resolveAndRecord(ctx, code)
	if err != nil || decision != nil {
		return nil, nil, decision, err
	}

	object, err := s.blobs.GetObject(ctx, record.StorageKey)
	if err != nil {
		return nil, nil, nil, s.handleBlobError(ctx, record, err)
	}

	return record, object, nil, nil
}

// ResolveDownloadRange — то же, что ResolveDownload, но отдает диапазон
// байтов [start, end] для докачки
func (s *ResolverService) ResolveDownloadRange(ctx context.Context, code string, start, end int64) (*domain.TransferRecord, s3.S3Object, *domain.QuotaDecision, error) {
	record, decision, err := s.resolveAndRecord(ctx, code)
	if err != nil || decision != nil {
		return nil, nil, decision, err
	}

	object, err := s.blobs.GetObjectRange(ctx, record.StorageKey, start, end)
	if err != nil {
		return nil, nil, nil, s.handleBlobError(ctx, record, err)
	}

	return record, object, nil, nil
}

func (s *ResolverService) resolveAndRecord(ctx context.Context, code string) (*domain.TransferRecord, *domain.QuotaDecision, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.transfers.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	decision, err := s.ledger.RecordDownload(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	if decision != nil && !decision.Allowed {
		return nil, decision, nil
	}

	return record, nil, nil
}

func (s *ResolverService) handleBlobError(ctx context.Context, record *domain.TransferRecord, err error) error {
	if !errors.Is(err, s3.ErrObjectNotFound) {
		return fmt.Errorf("failed to open blob %s: %w", record.StorageKey, err)
	}

	// Реестр считает запись живой, а байтов нет: выводим запись из
	// оборота, чтобы код перестал резолвиться, и зовем оператора
	s.alertf("[Resolver] ALERT: blob %s missing for active record %s (code %s)", record.StorageKey, record.ID, record.AccessCode)

	if _, expErr := s.transfers.ForceExpire(ctx, record.ID); expErr != nil {
		log.Printf("[Resolver] failed to force expire record %s: %v", record.ID, expErr)
	}

	return domain.ErrBlobMissing
}
