package domain

import "time"

type Account struct {
	ID                    string     `json:"id" db:"id"`
	Tier                  Tier       `json:"tier" db:"tier"`
	CumulativeTransferred int64      `json:"cumulative_transferred" db:"cumulative_transferred"`
	TransferLimit         int64      `json:"transfer_limit" db:"transfer_limit"`
	SubscriptionExpiry    *time.Time `json:"subscription_expiry,omitempty" db:"subscription_expiry"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

type AccountSummary struct {
	ID                    string     `json:"id"`
	Tier                  Tier       `json:"tier"`
	CumulativeTransferred int64      `json:"cumulative_transferred"`
	TransferLimit         int64      `json:"transfer_limit"`
	SubscriptionExpiry    *time.Time `json:"subscription_expiry,omitempty"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:                    a.ID,
		Tier:                  a.Tier,
		CumulativeTransferred: a.CumulativeTransferred,
		TransferLimit:         a.TransferLimit,
		SubscriptionExpiry:    a.SubscriptionExpiry,
	}
}
