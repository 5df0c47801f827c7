// Package sender доставляет уведомления из очередей через мессенджер.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// ErrMalformed сообщение из очереди не удалось разобрать.
var ErrMalformed = errors.New("malformed notification")

// Transport отправляет текстовое сообщение в чат.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// SenderService доставляет уведомления с ограничением темпа отправки.
type SenderService struct {
	transport Transport
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewSenderService создаёт SenderService. limiter может быть nil.
func NewSenderService(transport Transport, limiter *rate.Limiter, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		limiter:   limiter,
		log:       log,
	}
}

// Handler возвращает обработчик сообщений очереди, привязанный к ctx.
// Неразбираемое сообщение подтверждается и отбрасывается, ошибка отправки
// возвращает сообщение в очередь.
func (s *SenderService) Handler(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		err := s.Send(ctx, body)
		if errors.Is(err, ErrMalformed) {
			return nil
		}
		return err
	}
}

// Send разбирает уведомление и отправляет его получателю.
func (s *SenderService) Send(ctx context.Context, body []byte) error {
	const op = "sender.Send"

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}
	if n.ChatID == 0 || n.Text == "" {
		s.log.Error("notification without recipient or text", slog.Int64("chat_id", n.ChatID))
		return fmt.Errorf("%s: %w: empty chat or text", op, ErrMalformed)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.transport.SendText(ctx, n.ChatID, n.Text); err != nil {
		s.log.Warn("failed to deliver notification",
			sl.User(n.ChatID),
			slog.String("job_id", n.JobID),
			sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("notification delivered", sl.User(n.ChatID), slog.String("job_id", n.JobID))
	return nil
}
