// Package sender собирает процесс отправителя уведомлений: читает очереди
// notification.operator и notification.broadcast и доставляет сообщения через Telegram.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/rabbitmq"
	senderservice "github.com/sergeycommit/ai-tg-bot/internal/services/sender"
	"github.com/sergeycommit/ai-tg-bot/internal/telegram"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	workers       int
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: RABBITMQ_URL is required", op)
	}

	api, err := telegram.NewAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Общий темп на обе очереди: ограничение Telegram действует на бота целиком.
	limiter := rate.NewLimiter(rate.Limit(cfg.BroadcastRate), 1)
	senderService := senderservice.NewSenderService(telegram.NewSender(api), limiter, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		workers:       cfg.Workers,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.NotificationQueues() {
		err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, a.workers, a.senderService.Handler(ctx), a.logger)
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
