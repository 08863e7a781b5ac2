package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeferry/internal/domain"
)

func newSubscriptionFixture(t *testing.T) (*SubscriptionService, *fakeAccountStore, time.Time) {
	t.Helper()

	accounts := newFakeAccountStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewSubscriptionService(accounts, nil, fixedClock(now)), accounts, now
}

func TestPlansOrderedByPrice(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)

	plans := svc.Plans()
	require.Len(t, plans, 5)

	assert.Equal(t, domain.TierFree, plans[0].Tier)
	assert.Equal(t, domain.TierUnlimited, plans[4].Tier)
	for i := 1; i < len(plans); i++ {
		assert.Greater(t, plans[i].PriceUSD, plans[i-1].PriceUSD)
	}
}

func TestCurrentCreatesFreeAccount(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)

	account, err := svc.Current(context.Background(), "new-user")
	require.NoError(t, err)

	assert.Equal(t, domain.TierFree, account.Tier)
	assert.Equal(t, int64(30*domain.GiB), account.TransferLimit)
	assert.Nil(t, account.SubscriptionExpiry)
}

func TestUpgradeSetsLimitAndExpiry(t *testing.T) {
	svc, accounts, now := newSubscriptionFixture(t)
	accounts.put(&domain.Account{
		ID:                    "user-1",
		Tier:                  domain.TierFree,
		CumulativeTransferred: 20 * domain.GiB,
		TransferLimit:         30 * domain.GiB,
	})

	account, err := svc.Upgrade(context.Background(), "user-1", domain.TierPremium)
	require.NoError(t, err)

	assert.Equal(t, domain.TierPremium, account.Tier)
	assert.Equal(t, int64(250*domain.GiB), account.TransferLimit)
	require.NotNil(t, account.SubscriptionExpiry)
	assert.Equal(t, now.Add(30*24*time.Hour), *account.SubscriptionExpiry)

	// Апгрейд открывает новый цикл
	assert.Equal(t, int64(0), account.CumulativeTransferred)
}

func TestUpgradeUnknownTier(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)

	_, err := svc.Upgrade(context.Background(), "user-1", domain.Tier("platinum"))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestCurrentLapsesExpiredSubscription(t *testing.T) {
	svc, accounts, now := newSubscriptionFixture(t)
	expired := now.Add(-time.Hour)
	accounts.put(&domain.Account{
		ID:                    "user-1",
		Tier:                  domain.TierPro,
		CumulativeTransferred: 50 * domain.GiB,
		TransferLimit:         domain.TiB,
		SubscriptionExpiry:    &expired,
	})

	account, err := svc.Current(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.TierFree, account.Tier)
	assert.Equal(t, int64(30*domain.GiB), account.TransferLimit)
	assert.Nil(t, account.SubscriptionExpiry)

	// Накопленный расход при понижении сохраняется
	assert.Equal(t, int64(50*domain.GiB), account.CumulativeTransferred)
}

func TestCurrentKeepsLiveSubscription(t *testing.T) {
	svc, accounts, now := newSubscriptionFixture(t)
	future := now.Add(time.Hour)
	accounts.put(&domain.Account{
		ID:                 "user-1",
		Tier:               domain.TierBasic,
		TransferLimit:      100 * domain.GiB,
		SubscriptionExpiry: &future,
	})

	account, err := svc.Current(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierBasic, account.Tier)
}

func TestCancelFreeTier(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)

	_, err := svc.Cancel(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrCannotCancelFree)
}

func TestCancelPaidTier(t *testing.T) {
	svc, accounts, now := newSubscriptionFixture(t)
	future := now.Add(20 * 24 * time.Hour)
	accounts.put(&domain.Account{
		ID:                    "user-1",
		Tier:                  domain.TierPremium,
		CumulativeTransferred: 10 * domain.GiB,
		TransferLimit:         250 * domain.GiB,
		SubscriptionExpiry:    &future,
	})

	account, err := svc.Cancel(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.TierFree, account.Tier)
	assert.Equal(t, int64(30*domain.GiB), account.TransferLimit)
	assert.Nil(t, account.SubscriptionExpiry)
	assert.Equal(t, int64(10*domain.GiB), account.CumulativeTransferred)
}
