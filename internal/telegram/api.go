// Package telegram принимает обновления Telegram Bot API и отправляет ответы.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API подмножество методов tgbotapi.BotAPI, используемых ботом.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI авторизует бота по токену.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	const op = "telegram.NewAPI"
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return api, nil
}

// Sender отправляет текстовые сообщения.
type Sender struct {
	api API
}

// NewSender создаёт Sender.
func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// SendText отправляет текст в чат.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.SendText"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("%s: chat %d: %w", op, chatID, err)
	}
	return nil
}

// MembershipChecker проверяет подписку на канал через getChatMember.
type MembershipChecker struct {
	api     API
	channel string
}

// NewMembershipChecker создаёт проверку для канала вида "@name" или числового id.
func NewMembershipChecker(api API, channel string) *MembershipChecker {
	return &MembershipChecker{api: api, channel: channel}
}

// IsChannelMember сообщает, является ли пользователь участником,
// администратором или создателем канала.
func (c *MembershipChecker) IsChannelMember(ctx context.Context, userID int64) (bool, error) {
	const op = "telegram.IsChannelMember"
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID},
	}
	if strings.HasPrefix(c.channel, "@") {
		cfg.SuperGroupUsername = c.channel
	} else if _, err := fmt.Sscan(c.channel, &cfg.ChatID); err != nil {
		return false, fmt.Errorf("%s: invalid channel %q: %w", op, c.channel, err)
	}

	member, err := c.api.GetChatMember(cfg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	default:
		return false, nil
	}
}
