package models

// Notification сообщение для доставки пользователю через очередь уведомлений.
type Notification struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
	// JobID идентификатор рассылки, пустой для уведомлений оператора.
	JobID string `json:"job_id,omitempty"`
}
