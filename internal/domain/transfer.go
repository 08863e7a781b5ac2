package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferStatusActive  TransferStatus = "active"
	TransferStatusExpired TransferStatus = "expired"
)

// TransferTTL — время жизни записи с момента загрузки
const TransferTTL = 24 * time.Hour

type TransferRecord struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	OwnerAccountID   *string        `json:"owner_account_id,omitempty" db:"owner_account_id"`
	IsGuest          bool           `json:"is_guest" db:"is_guest"`
	StorageKey       string         `json:"-" db:"storage_key"`
	DisplayName      string         `json:"display_name" db:"display_name"`
	MIMEType         string         `json:"mime_type" db:"mime_type"`
	SizeBytes        int64          `json:"size_bytes" db:"size_bytes"`
	AccessCode       string         `json:"access_code" db:"access_code"`
	Status           TransferStatus `json:"status" db:"status"`
	DownloadCount    int64          `json:"download_count" db:"download_count"`
	TotalBytesServed int64          `json:"total_bytes_served" db:"total_bytes_served"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt        time.Time      `json:"expires_at" db:"expires_at"`
}

// TransferRecordSummary отдается по коду без ключа хранилища и владельца
type TransferRecordSummary struct {
	DisplayName   string    `json:"display_name"`
	MIMEType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (t *TransferRecord) Summary() TransferRecordSummary {
	return TransferRecordSummary{
		DisplayName:   t.DisplayName,
		MIMEType:      t.MIMEType,
		SizeBytes:     t.SizeBytes,
		DownloadCount: t.DownloadCount,
		CreatedAt:     t.CreatedAt,
		ExpiresAt:     t.ExpiresAt,
	}
}

func (t *TransferRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
