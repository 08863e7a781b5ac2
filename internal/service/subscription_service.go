package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"codeferry/internal/domain"
)

// ErrCannotCancelFree возвращается при попытке отменить бесплатный тариф
var ErrCannotCancelFree = errors.New("free tier cannot be cancelled")

// ErrUnknownTier возвращается при апгрейде на несуществующий тариф
var ErrUnknownTier = errors.New("unknown tier")

const subscriptionPeriod = 30 * 24 * time.Hour

// Plan — публичное описание тарифа для витрины
type Plan struct {
	Tier          domain.Tier `json:"tier"`
	MaxFileBytes  int64       `json:"max_file_bytes"`
	TransferLimit int64       `json:"transfer_limit"`
	PriceUSD      float64     `json:"price_usd"`
}

// SubscriptionService управляет тарифом аккаунта: витрина планов,
// апгрейд, отмена и возврат на free по истечении подписки
type SubscriptionService struct {
	accounts   AccountStore
	tierLimits map[domain.Tier]domain.TierLimits
	now        func() time.Time
}

func NewSubscriptionService(accounts AccountStore, tierLimits map[domain.Tier]domain.TierLimits, clock func() time.Time) *SubscriptionService {
	if tierLimits == nil {
		tierLimits = domain.DefaultTierLimits()
	}
	if clock == nil {
		clock = time.Now
	}

	return &SubscriptionService{
		accounts:   accounts,
		tierLimits: tierLimits,
		now:        clock,
	}
}

// Plans возвращает тарифы в порядке возрастания цены
func (s *SubscriptionService) Plans() []Plan {
	order := []domain.Tier{
		domain.TierFree,
		domain.TierBasic,
		domain.TierPremium,
		domain.TierPro,
		domain.TierUnlimited,
	}

	plans := make([]Plan, 0, len(order))
	for _, tier := range order {
		limits, ok := s.tierLimits[tier]
		if !ok {
			continue
		}
		plans = append(plans, Plan{
			Tier:          tier,
			MaxFileBytes:  limits.MaxFileBytes,
			TransferLimit: limits.TransferLimit,
			PriceUSD:      limits.PriceUSD,
		})
	}

	return plans
}

// Current возвращает аккаунт, при необходимости создавая его с тарифом
// free. Истекшая платная подписка тут же понижается до free, так что
// наружу никогда не уходит просроченный тариф
func (s *SubscriptionService) Current(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.Ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Tier != domain.TierFree &&
		account.SubscriptionExpiry != nil &&
		!s.now().Before(*account.SubscriptionExpiry) {
		account, err = s.lapseToFree(ctx, account)
		if err != nil {
			return nil, err
		}
	}

	return account, nil
}

// Upgrade переводит аккаунт на указанный тариф и открывает новый
// расчетный цикл: совокупный счетчик обнуляется
func (s *SubscriptionService) Upgrade(ctx context.Context, accountID string, tier domain.Tier) (*domain.Account, error) {
	if !domain.ValidTier(tier) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}

	limits, ok := s.tierLimits[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}

	if _, err := s.accounts.Ensure(ctx, accountID); err != nil {
		return nil, err
	}

	var expiry *time.Time
	if tier != domain.TierFree {
		e := s.now().Add(subscriptionPeriod)
		expiry = &e
	}

	if err := s.accounts.UpdateSubscription(ctx, accountID, tier, limits.TransferLimit, expiry); err != nil {
		return nil, err
	}
	if err := s.accounts.ResetCycle(ctx, accountID); err != nil {
		return nil, err
	}

	log.Printf("[Subscription] account %s upgraded to %s", accountID, tier)

	return s.accounts.GetByID(ctx, accountID)
}

// Cancel возвращает аккаунт на тариф free. Накопленный счетчик при этом
// сохраняется: отмена не обнуляет использование
func (s *SubscriptionService) Cancel(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.Ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Tier == domain.TierFree {
		return nil, ErrCannotCancelFree
	}

	return s.lapseToFree(ctx, account)
}

func (s *SubscriptionService) lapseToFree(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	free := s.tierLimits[domain.TierFree]

	if err := s.accounts.UpdateSubscription(ctx, account.ID, domain.TierFree, free.TransferLimit, nil); err != nil {
		return nil, err
	}

	log.Printf("[Subscription] account %s reverted to free", account.ID)

	return s.accounts.GetByID(ctx, account.ID)
}
