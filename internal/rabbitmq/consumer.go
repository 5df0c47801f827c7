package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

// ConsumerMessage запускает потребителя очереди queueName. Каждое сообщение
// обрабатывается в отдельной горутине, одновременно не более workers.
// Успешно обработанное сообщение подтверждается, при ошибке handler
// возвращается в очередь. Потребитель останавливается при отмене ctx.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, workers int, handler func([]byte) error, log *slog.Logger) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if workers <= 0 {
		workers = 10
	}

	log = log.With(slog.String("queue", queueName))
	sem := make(chan struct{}, workers)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Info("delivery channel closed")
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(d.Body); err != nil {
						log.Warn("message handling failed, requeueing", sl.Err(err))
						if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
