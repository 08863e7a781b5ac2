package service

import (
	"math"

	"codeferry/internal/domain"
)

// QuotaPolicy — чистая функция решения: никаких побочных эффектов,
// только (актор, тариф, запрошенные байты, история) -> разрешение/отказ
type QuotaPolicy struct {
	guestMaxBytes int64
	tierLimits    map[domain.Tier]domain.TierLimits
}

func NewQuotaPolicy(guestMaxBytes int64, tierLimits map[domain.Tier]domain.TierLimits) *QuotaPolicy {
	if guestMaxBytes <= 0 {
		guestMaxBytes = domain.GuestMaxBytes
	}
	if tierLimits == nil {
		tierLimits = domain.DefaultTierLimits()
	}

	return &QuotaPolicy{
		guestMaxBytes: guestMaxBytes,
		tierLimits:    tierLimits,
	}
}

// MaxFileBytes возвращает потолок размера одного файла для тарифа;
// 0 — потолка нет
func (p *QuotaPolicy) MaxFileBytes(tier domain.Tier) int64 {
	limits, ok := p.tierLimits[tier]
	if !ok {
		return domain.DefaultMaxFileBytes
	}
	return limits.MaxFileBytes
}

// DecideUpload решает, разрешена ли загрузка. Анонимные загрузки судятся
// каждая отдельно по гостевому потолку; для аккаунтов проверяются потолок
// на файл и совокупная квота — отказ различает причины
func (p *QuotaPolicy) DecideUpload(actor *domain.Account, requestedBytes int64) domain.QuotaDecision {
	if actor == nil {
		if requestedBytes > p.guestMaxBytes {
			return domain.Deny(domain.DenyReasonPerFileLimit, p.guestMaxBytes, 0)
		}
		return domain.Allow(p.guestMaxBytes, 0)
	}

	if maxFile := p.MaxFileBytes(actor.Tier); maxFile > 0 && requestedBytes > maxFile {
		return domain.Deny(domain.DenyReasonPerFileLimit, maxFile, actor.CumulativeTransferred)
	}

	return p.decideCumulative(actor, requestedBytes)
}

// DecideDownload применяет совокупную квоту к владельцу записи: скачивание
// списывается с загрузившего, а не со скачивающего. Гостевые записи
// совокупно не учитываются
func (p *QuotaPolicy) DecideDownload(record *domain.TransferRecord, owner *domain.Account) domain.QuotaDecision {
	if owner == nil {
		return domain.Allow(0, 0)
	}

	return p.decideCumulative(owner, record.SizeBytes)
}

func (p *QuotaPolicy) decideCumulative(account *domain.Account, requestedBytes int64) domain.QuotaDecision {
	// Переполнение int64 трактуем как превышение квоты, а не как wrap
	if requestedBytes > math.MaxInt64-account.CumulativeTransferred {
		return domain.Deny(domain.DenyReasonCumulativeQuota, account.TransferLimit, account.CumulativeTransferred)
	}

	if account.CumulativeTransferred+requestedBytes > account.TransferLimit {
		return domain.Deny(domain.DenyReasonCumulativeQuota, account.TransferLimit, account.CumulativeTransferred)
	}

	return domain.Allow(account.TransferLimit, account.CumulativeTransferred)
}
