package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeferry/internal/domain"
	"codeferry/internal/service/s3"
)

// fakeTransferStore повторяет семантику TransferRepository в памяти,
// включая уникальность кода среди живых записей и условные обновления
type fakeTransferStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.TransferRecord
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{records: make(map[uuid.UUID]*domain.TransferRecord)}
}

func (s *fakeTransferStore) Create(_ context.Context, record *domain.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.Status == domain.TransferStatusActive && existing.AccessCode == record.AccessCode {
			return domain.ErrCodeTaken
		}
	}

	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *fakeTransferStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *fakeTransferStore) GetActiveByCode(_ context.Context, code string) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Status == domain.TransferStatusActive && record.AccessCode == code {
			clone := *record
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeTransferStore) ListByOwner(_ context.Context, ownerID string) ([]domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TransferRecord
	for _, record := range s.records {
		if record.Status == domain.TransferStatusActive &&
			record.OwnerAccountID != nil && *record.OwnerAccountID == ownerID {
			out = append(out, *record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeTransferStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *fakeTransferStore) RecordDownload(_ context.Context, id uuid.UUID, sizeBytes int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.Status != domain.TransferStatusActive || !now.Before(record.ExpiresAt) {
		return false, nil
	}
	record.DownloadCount++
	record.TotalBytesServed += sizeBytes
	return true, nil
}

func (s *fakeTransferStore) MarkExpired(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.Status != domain.TransferStatusActive || now.Before(record.ExpiresAt) {
		return false, nil
	}
	record.Status = domain.TransferStatusExpired
	return true, nil
}

func (s *fakeTransferStore) ForceExpire(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.Status != domain.TransferStatusActive {
		return false, nil
	}
	record.Status = domain.TransferStatusExpired
	return true, nil
}

func (s *fakeTransferStore) ListExpired(_ context.Context, now time.Time) ([]domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TransferRecord
	for _, record := range s.records {
		if record.Status == domain.TransferStatusActive && !now.Before(record.ExpiresAt) {
			out = append(out, *record)
		}
	}
	return out, nil
}

// fakeAccountStore повторяет семантику AccountRepository в памяти
type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]*domain.Account)}
}

func (s *fakeAccountStore) put(account *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *account
	s.accounts[account.ID] = &clone
}

func (s *fakeAccountStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *fakeAccountStore) Ensure(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.accounts[id]; ok {
		clone := *account
		return &clone, nil
	}

	limits := domain.DefaultTierLimits()[domain.TierFree]
	account := &domain.Account{
		ID:            id,
		Tier:          domain.TierFree,
		TransferLimit: limits.TransferLimit,
	}
	s.accounts[id] = account
	clone := *account
	return &clone, nil
}

func (s *fakeAccountStore) ChargeTransfer(_ context.Context, id string, deltaBytes int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return false, nil
	}
	if account.TransferLimit-account.CumulativeTransferred < deltaBytes {
		return false, nil
	}
	account.CumulativeTransferred += deltaBytes
	return true, nil
}

func (s *fakeAccountStore) Refund(_ context.Context, id string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	account.CumulativeTransferred -= deltaBytes
	if account.CumulativeTransferred < 0 {
		account.CumulativeTransferred = 0
	}
	return nil
}

func (s *fakeAccountStore) UpdateSubscription(_ context.Context, id string, tier domain.Tier, transferLimit int64, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	account.Tier = tier
	account.TransferLimit = transferLimit
	account.SubscriptionExpiry = expiry
	return nil
}

func (s *fakeAccountStore) ResetCycle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	account.CumulativeTransferred = 0
	return nil
}

// fakeBlobStore хранит объекты в памяти вместо бакета
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

type fakeObject struct {
	io.ReadCloser
	length int64
}

func (o *fakeObject) ContentLength() int64 { return o.length }
func (o *fakeObject) ContentType() string  { return "application/octet-stream" }

func (s *fakeBlobStore) PutObject(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeBlobStore) GetObject(_ context.Context, key string) (s3.S3Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		length:     int64(len(data)),
	}, nil
}

func (s *fakeBlobStore) GetObjectRange(_ context.Context, key string, start, end int64) (s3.S3Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	part := data[start : end+1]
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(part)),
		length:     int64(len(part)),
	}, nil
}

func (s *fakeBlobStore) DeleteObject(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

// stubRand выдает заранее заданную последовательность значений
type stubRand struct {
	values []int
	pos    int
}

func (r *stubRand) Intn(n int) int {
	if r.pos >= len(r.values) {
		return 0
	}
	v := r.values[r.pos] % n
	r.pos++
	return v
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
