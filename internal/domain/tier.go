package domain

import "math"

type Tier string

const (
	TierFree      Tier = "free"
	TierBasic     Tier = "basic"
	TierPremium   Tier = "premium"
	TierPro       Tier = "pro"
	TierUnlimited Tier = "unlimited"
)

const (
	GiB = 1024 * 1024 * 1024
	TiB = 1024 * GiB

	// GuestMaxBytes — потолок одного анонимного трансфера
	GuestMaxBytes = 1 * GiB

	// DefaultMaxFileBytes применяется к тарифам без собственного потолка на файл
	DefaultMaxFileBytes = 30 * GiB

	// NoLimit означает отсутствие потолка для тарифа
	NoLimit = math.MaxInt64
)

// TierLimits — явная таблица лимитов тарифа. Значение MaxFileBytes = 0
// означает, что проверка размера одного файла для тарифа не выполняется
// и остается только совокупная квота.
type TierLimits struct {
	MaxFileBytes  int64
	TransferLimit int64
	PriceUSD      float64
}

func DefaultTierLimits() map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierFree:      {MaxFileBytes: 30 * GiB, TransferLimit: 30 * GiB, PriceUSD: 0},
		TierBasic:     {MaxFileBytes: 30 * GiB, TransferLimit: 100 * GiB, PriceUSD: 4.99},
		TierPremium:   {MaxFileBytes: 100 * GiB, TransferLimit: 250 * GiB, PriceUSD: 9.99},
		TierPro:       {MaxFileBytes: 500 * GiB, TransferLimit: 1 * TiB, PriceUSD: 19.99},
		TierUnlimited: {MaxFileBytes: 0, TransferLimit: NoLimit, PriceUSD: 49.99},
	}
}

func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierBasic, TierPremium, TierPro, TierUnlimited:
		return true
	}
	return false
}
