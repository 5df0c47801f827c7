package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublishMessage(t *testing.T) {
	msg := models.Notification{ChatID: 7, Text: "hello"}

	tests := []struct {
		name       string
		message    any
		setupMocks func(*MockChannel)
		wantErr    bool
	}{
		{
			name:    "success",
			message: msg,
			setupMocks: func(ch *MockChannel) {
				ch.On("Publish", Exchange, RoutingOperator, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
					var got models.Notification
					if err := json.Unmarshal(p.Body, &got); err != nil {
						return false
					}
					return got == msg && p.ContentType == "application/json" && p.DeliveryMode == amqp.Persistent
				})).Return(nil).Once()
			},
		},
		{
			name:    "publish error",
			message: msg,
			setupMocks: func(ch *MockChannel) {
				ch.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("channel closed")).Once()
			},
			wantErr: true,
		},
		{
			name: "marshal error",
			// В json marshal нельзя сериализовать канал
			message:    struct{ Ch chan int }{Ch: make(chan int)},
			setupMocks: func(*MockChannel) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := new(MockChannel)
			tt.setupMocks(ch)

			err := PublishMessage(ch, Exchange, RoutingOperator, tt.message)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			ch.AssertExpectations(t)
		})
	}
}

func TestNotificationQueues(t *testing.T) {
	queues := NotificationQueues()
	require.Len(t, queues, 2)
	assert.Equal(t, QueueConfig{QueueName: QueueOperator, RoutingKey: RoutingOperator}, queues[0])
	assert.Equal(t, QueueConfig{QueueName: QueueBroadcast, RoutingKey: RoutingBroadcast}, queues[1])
}
