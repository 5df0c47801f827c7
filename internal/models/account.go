// Package models содержит доменные структуры бота: учётную запись пользователя
// с состоянием квоты и премиум-подписки, сообщения истории диалога,
// платежи и решение о допуске запроса.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// Profile описывает необязательные данные пользователя из мессенджера.
// Заполняется при создании учётной записи и не участвует в принятии решений.
type Profile struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Account представляет учётную запись пользователя и состояние его квоты.
type Account struct {
	ID              int64      `json:"-"`                       // Внутренний идентификатор строки
	ExternalID      int64      `json:"external_id"`             // Идентификатор пользователя в Telegram, уникален и неизменяем
	Profile                    // Имя пользователя, имя и фамилия
	IsPremium       bool       `json:"is_premium"`              // Истина только пока действует неистёкший премиум
	PremiumUntil    *time.Time `json:"premium_until,omitempty"` // Момент окончания премиума, nil если премиума нет
	RequestsToday   int        `json:"requests_today"`          // Количество допущенных запросов с LastRequestDate
	LastRequestDate time.Time  `json:"last_request_date"`       // Календарная дата последнего сброса или инкремента
}

// PremiumActive сообщает, действует ли премиум на момент now.
func (a *Account) PremiumActive(now time.Time) bool {
	return a.IsPremium && a.PremiumUntil != nil && a.PremiumUntil.After(now)
}

// Date возвращает календарную дату момента t в зоне loc.
// Дата представляется полночью UTC, так же как её возвращает колонка DATE,
// поэтому даты из хранилища и вычисленные даты сравниваются напрямую.
func Date(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalendarDate приводит значение даты к полуночи UTC без смены дня.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
