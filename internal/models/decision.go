package models

import "time"

// Reason объясняет решение о допуске запроса.
type Reason string

const (
	ReasonFreeQuota       Reason = "free_quota"
	ReasonPremium         Reason = "premium"
	ReasonOperator        Reason = "operator"
	ReasonQuotaExceeded   Reason = "quota_exceeded"
	ReasonUnknownAccount  Reason = "unknown_account"
	ReasonStorageFailOpen Reason = "storage_fail_open"
	ReasonStorageFailure  Reason = "storage_failure"
)

// Decision: результат проверки допуска одного входящего запроса.
type Decision struct {
	Allowed       bool
	Reason        Reason
	RequestsToday int        // Значение счётчика после решения
	Limit         int        // Дневной бесплатный лимит
	PremiumUntil  *time.Time // Окончание премиума, если он действует
}

// Allow создаёт разрешающее решение.
func Allow(reason Reason) Decision {
	return Decision{Allowed: true, Reason: reason}
}

// Deny создаёт запрещающее решение.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Remaining возвращает число оставшихся бесплатных запросов на сегодня.
func (d Decision) Remaining() int {
	if d.Limit <= d.RequestsToday {
		return 0
	}
	return d.Limit - d.RequestsToday
}
