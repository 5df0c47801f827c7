// Package notifier доставляет служебные уведомления оператору бота.
// Доставка всегда «выстрелил и забыл»: ошибки логируются и никогда
// не возвращаются вызывающему.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/rabbitmq"
)

// Notifier канал уведомлений оператора.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// MessageSender отправляет текстовое сообщение в чат.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// sendTimeout ограничивает прямую отправку, вызывающий может не задавать срок.
const sendTimeout = 10 * time.Second

// Direct отправляет уведомления оператору напрямую через мессенджер.
type Direct struct {
	sender     MessageSender
	operatorID int64
	log        *slog.Logger
}

// NewDirect создаёт Direct.
func NewDirect(sender MessageSender, operatorID int64, log *slog.Logger) *Direct {
	return &Direct{sender: sender, operatorID: operatorID, log: log}
}

// NotifyOperator отправляет text оператору.
func (d *Direct) NotifyOperator(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := d.sender.SendText(ctx, d.operatorID, text); err != nil {
		d.log.Error("failed to notify operator", sl.Err(err))
	}
}

// Queue публикует уведомления оператору в очередь notification.operator;
// доставку выполняет отдельный процесс отправителя.
type Queue struct {
	ch         rabbitmq.Channel
	operatorID int64
	log        *slog.Logger
}

// NewQueue создаёт Queue.
func NewQueue(ch rabbitmq.Channel, operatorID int64, log *slog.Logger) *Queue {
	return &Queue{ch: ch, operatorID: operatorID, log: log}
}

// NotifyOperator публикует text для оператора.
func (q *Queue) NotifyOperator(_ context.Context, text string) {
	msg := models.Notification{ChatID: q.operatorID, Text: text}
	if err := rabbitmq.PublishMessage(q.ch, rabbitmq.Exchange, rabbitmq.RoutingOperator, msg); err != nil {
		q.log.Error("failed to publish operator notification", sl.Err(err))
	}
}

// Log только пишет уведомления в лог. Используется, когда доставка не настроена.
type Log struct {
	log *slog.Logger
}

// NewLog создаёт Log.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// NotifyOperator пишет text в лог.
func (l *Log) NotifyOperator(_ context.Context, text string) {
	l.log.Info("operator notification", slog.String("text", text))
}
