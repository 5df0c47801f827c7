// Package rabbitmq содержит подключение к RabbitMQ, объявление обменника
// и очередей уведомлений, публикацию и потребление сообщений.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

// Connect подключается к RabbitMQ, повторяя попытку не более retries раз с паузой delay.
func Connect(ctx context.Context, connection string, retries int, delay time.Duration, log *slog.Logger) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var err error

	for attempt := 1; attempt <= retries; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		log.Warn("rabbitmq is not ready", slog.Int("attempt", attempt), sl.Err(err))

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}
