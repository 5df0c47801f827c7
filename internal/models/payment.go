package models

import "time"

// Plan описывает тарифный план премиум-подписки из каталога.
type Plan struct {
	ID           string `yaml:"id" json:"id" validate:"required,alphanum"`
	Price        int    `yaml:"price" json:"price" validate:"gt=0"` // Цена в Telegram Stars
	DurationDays int    `yaml:"duration_days" json:"duration_days" validate:"gt=0"`
}

// Duration возвращает длительность действия плана.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Payment представляет подтверждённый платёж, применённый к учётной записи.
// ChargeID уникален, повторная доставка того же платежа не продлевает премиум дважды.
type Payment struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	PlanID     string    `json:"plan_id"`
	ChargeID   string    `json:"charge_id"`
	Amount     int       `json:"amount"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}
