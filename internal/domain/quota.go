package domain

type DenyReason string

const (
	DenyReasonNone            DenyReason = ""
	DenyReasonPerFileLimit    DenyReason = "per_file_limit"
	DenyReasonCumulativeQuota DenyReason = "cumulative_quota"
)

// QuotaDecision — эфемерное значение, в БД не сохраняется
type QuotaDecision struct {
	Allowed           bool       `json:"allowed"`
	Reason            DenyReason `json:"reason,omitempty"`
	LimitBytes        int64      `json:"limit_bytes"`
	CurrentUsageBytes int64      `json:"current_usage_bytes"`
}

func Allow(limitBytes, currentUsage int64) QuotaDecision {
	return QuotaDecision{Allowed: true, LimitBytes: limitBytes, CurrentUsageBytes: currentUsage}
}

func Deny(reason DenyReason, limitBytes, currentUsage int64) QuotaDecision {
	return QuotaDecision{Allowed: false, Reason: reason, LimitBytes: limitBytes, CurrentUsageBytes: currentUsage}
}
