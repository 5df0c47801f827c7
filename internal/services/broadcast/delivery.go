package broadcast

import (
	"context"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/rabbitmq"
)

// MessageSender отправляет текстовое сообщение в чат.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// DirectDelivery доставляет сообщения сразу через мессенджер.
type DirectDelivery struct {
	Sender MessageSender
}

// Deliver отправляет уведомление.
func (d DirectDelivery) Deliver(ctx context.Context, n models.Notification) error {
	return d.Sender.SendText(ctx, n.ChatID, n.Text)
}

// QueueDelivery ставит сообщения в очередь notification.broadcast.
type QueueDelivery struct {
	Channel rabbitmq.Channel
}

// Deliver публикует уведомление.
func (d QueueDelivery) Deliver(_ context.Context, n models.Notification) error {
	return rabbitmq.PublishMessage(d.Channel, rabbitmq.Exchange, rabbitmq.RoutingBroadcast, n)
}
