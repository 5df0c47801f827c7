package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Exchange обменник уведомлений.
const Exchange = "notifications"

// Ключи маршрутизации и очереди уведомлений.
const (
	RoutingOperator  = "operator"
	RoutingBroadcast = "broadcast"

	QueueOperator  = "notification.operator"
	QueueBroadcast = "notification.broadcast"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, которые обслуживает отправитель уведомлений.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueOperator, RoutingKey: RoutingOperator},
		{QueueName: QueueBroadcast, RoutingKey: RoutingBroadcast},
	}
}

// SetupChannel открывает канал, объявляет прямой обменник Exchange
// и привязывает к нему очереди queues.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("%s: declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("%s: bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
