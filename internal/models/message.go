package models

import "time"

// Роли сообщений истории диалога.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message представляет одно сообщение истории диалога пользователя.
type Message struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"-"`          // Внутренний идентификатор владельца
	Role      string    `json:"role"`       // user или assistant
	Content   string    `json:"content"`    // Текст сообщения
	CreatedAt time.Time `json:"created_at"` // Назначается сервером
}
