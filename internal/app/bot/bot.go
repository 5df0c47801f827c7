// Package bot собирает процесс бота: хранилище, миграции, движок квот,
// активацию подписок, транспорт Telegram и административный HTTP API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/cache"
	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/jwt"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/llm"
	"github.com/sergeycommit/ai-tg-bot/internal/metrics"
	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/rabbitmq"
	"github.com/sergeycommit/ai-tg-bot/internal/services/access"
	"github.com/sergeycommit/ai-tg-bot/internal/services/activation"
	"github.com/sergeycommit/ai-tg-bot/internal/services/admin"
	broadcastservice "github.com/sergeycommit/ai-tg-bot/internal/services/broadcast"
	"github.com/sergeycommit/ai-tg-bot/internal/services/notifier"
	"github.com/sergeycommit/ai-tg-bot/internal/services/quota"
	"github.com/sergeycommit/ai-tg-bot/internal/services/scheduler"
	"github.com/sergeycommit/ai-tg-bot/internal/storage/memstore"
	"github.com/sergeycommit/ai-tg-bot/internal/storage/repository"
	"github.com/sergeycommit/ai-tg-bot/internal/telegram"
)

// Store хранилище учётных записей, которое нужно всем сервисам бота.
type Store interface {
	access.Store
	quota.AccountStore
	activation.AccountStore
	broadcastservice.AccountSource
	scheduler.ExpiringSource
	admin.Payments
	Ping(ctx context.Context) error
	io.Closer
}

// nopEvolver используется с хранилищем в памяти, у которого нет схемы.
type nopEvolver struct{}

func (nopEvolver) Evolve(context.Context) (migrations.Report, error) {
	return migrations.Report{}, nil
}

type App struct {
	cfg         *config.Config
	store       Store
	cache       *cache.Cache
	conn        *amqp.Connection
	ch          *amqp.Channel
	bot         *telegram.Bot
	broadcaster *broadcastservice.Service
	reminder    *scheduler.ReminderService
	server      *http.Server
	logger      *slog.Logger
}

// New собирает приложение. Ошибка эволюции схемы по критической колонке
// прерывает запуск.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.bot.New"

	app := &App{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			app.close()
		}
	}()

	api, err := telegram.NewAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sender := telegram.NewSender(api)

	var operator notifier.Notifier = notifier.NewDirect(sender, cfg.OperatorID, logger)
	var delivery broadcastservice.Delivery = broadcastservice.DirectDelivery{Sender: sender}
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.NotificationQueues())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		operator = notifier.NewQueue(app.ch, cfg.OperatorID, logger)
		delivery = broadcastservice.QueueDelivery{Channel: app.ch}
		logger.Info("notifications routed through rabbitmq")
	}

	var evolver admin.Evolver = nopEvolver{}
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, state is lost on restart")
		app.store = memstore.New()
	default:
		db, err := repository.Connect(ctx, cfg.StorageConnectionString, cfg.StorageConnectRetries, cfg.StorageConnectDelay, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.store = db
		if err := migrations.Run(db.DB); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ev := migrations.NewEvolver(db, migrations.Schema, operator, logger)
		if _, err := ev.Evolve(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		evolver = ev
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	engine := quota.New(app.store, quota.Options{
		FreeRequestsPerDay:   cfg.FreeRequestsPerDay,
		Location:             cfg.Location(),
		IsOperator:           cfg.IsAdmin,
		StorageFailurePolicy: cfg.StorageFailurePolicy,
		Recorder:             m,
	}, logger)
	activator := activation.New(app.store, cfg.Plans, operator, m, logger)

	accessOpts := access.Options{
		HistoryLimit: cfg.HistoryLimit,
		Membership:   telegram.NewMembershipChecker(api, cfg.Channel),
		CacheTTL:     cfg.MembershipCacheTTL,
	}
	if cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accessOpts.Cache = app.cache
	}
	accessService := access.New(app.store, engine, activator, accessOpts, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.BroadcastRate), 1)
	app.broadcaster = broadcastservice.New(app.store, delivery, limiter, operator, m, logger)
	if cfg.ReminderLead > 0 {
		opts := scheduler.Options{Lead: cfg.ReminderLead, Interval: cfg.ReminderInterval}
		if app.cache != nil {
			opts.Marker = app.cache
		}
		app.reminder = scheduler.NewReminderService(app.store, delivery, opts, logger)
	}
	adminService := admin.New(evolver, engine, activator, app.store, app.broadcaster, m, logger)

	app.bot = telegram.New(api, accessService, llm.New(cfg.LLM, logger), cfg.Plans, adminService, telegram.Options{
		ChannelURL:         cfg.ChannelURL,
		FreeRequestsPerDay: cfg.FreeRequestsPerDay,
		Workers:            cfg.Workers,
		IsAdmin:            cfg.IsAdmin,
	}, logger)

	if cfg.AddressHTTP != "" {
		router := chi.NewRouter()
		RegisterRoutes(router, logger, RouteDeps{
			Admin:          adminService,
			Pinger:         app.store,
			Tokens:         jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
			Metrics:        m,
			MetricsHandler: promhttp.Handler(),
			Limiter:        rate.NewLimiter(rate.Limit(10), 20),
		})
		app.server = &http.Server{
			Addr:         cfg.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutHTTP,
			WriteTimeout: cfg.TimeoutHTTP,
			IdleTimeout:  cfg.IdleTimeout,
		}
	}

	ready = true
	return app, nil
}

// Run обрабатывает обновления до отмены ctx, затем дожидается
// запущенных обработчиков и рассылок и освобождает ресурсы.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.logger.Info("admin http server starting", slog.String("address", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	botCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		a.logger.Info("bot polling started")
		a.bot.Run(botCtx)
	}()

	reminderDone := make(chan struct{})
	go func() {
		defer close(reminderDone)
		if a.reminder != nil {
			a.reminder.Run(botCtx)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.logger.Error("admin http server failed", sl.Err(runErr))
		cancel()
	}
	<-botDone
	<-reminderDone

	if a.server != nil {
		timeoutCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
		defer stop()
		a.logger.Info("shutting down admin http server gracefully")
		if err := a.server.Shutdown(timeoutCtx); err != nil {
			a.logger.Error("failed to shutdown admin http server", sl.Err(err))
		}
	}
	a.broadcaster.Wait()
	a.close()
	return runErr
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
