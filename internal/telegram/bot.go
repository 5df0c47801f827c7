package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/services/access"
)

// Access операции доступа пользователя к боту.
type Access interface {
	OnContact(ctx context.Context, externalID int64, profile models.Profile) (*models.Account, error)
	OnRequest(ctx context.Context, externalID int64) (models.Decision, error)
	OnPaymentConfirmed(ctx context.Context, payment models.Payment) (*models.Account, error)
	CheckMembership(ctx context.Context, externalID int64, fresh bool) (bool, error)
	History(ctx context.Context, externalID int64) ([]models.Message, error)
	Remember(ctx context.Context, externalID int64, question, answer string) error
	ClearHistory(ctx context.Context, externalID int64) (int64, error)
	Status(ctx context.Context, externalID int64) (access.StatusView, error)
}

// Assistant языковая модель и распознавание речи.
type Assistant interface {
	Complete(ctx context.Context, history []models.Message, prompt string) (string, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Plans каталог премиум-планов.
type Plans interface {
	Get(id string) (models.Plan, bool)
	Sorted() []models.Plan
}

// Admin административные операции.
type Admin interface {
	Migrate(ctx context.Context) (migrations.Report, error)
	ResetOne(ctx context.Context, externalID int64) (*models.Account, error)
	ResetAll(ctx context.Context) (int64, error)
	Grant(ctx context.Context, externalID int64, planID string, days int) (*models.Account, error)
	Broadcast(ctx context.Context, text string) (string, error)
}

// Options настройки бота.
type Options struct {
	ChannelURL         string
	FreeRequestsPerDay int
	Workers            int
	IsAdmin            func(externalID int64) bool
	// HandleTimeout ограничивает обработку одного обновления.
	HandleTimeout time.Duration
	HTTPClient    *http.Client
}

// Bot обработчик обновлений Telegram.
type Bot struct {
	api           API
	access        Access
	assistant     Assistant
	plans         Plans
	admin         Admin
	channelURL    string
	freeRequests  int
	isAdmin       func(int64) bool
	workers       int
	handleTimeout time.Duration
	httpClient    *http.Client
	wg            sync.WaitGroup
	log           *slog.Logger
}

// New создаёт Bot.
func New(api API, acc Access, assistant Assistant, plans Plans, admin Admin, opts Options, log *slog.Logger) *Bot {
	b := &Bot{
		api:           api,
		access:        acc,
		assistant:     assistant,
		plans:         plans,
		admin:         admin,
		channelURL:    opts.ChannelURL,
		freeRequests:  opts.FreeRequestsPerDay,
		isAdmin:       opts.IsAdmin,
		workers:       opts.Workers,
		handleTimeout: opts.HandleTimeout,
		httpClient:    opts.HTTPClient,
		log:           log,
	}
	if b.workers <= 0 {
		b.workers = 1
	}
	if b.isAdmin == nil {
		b.isAdmin = func(int64) bool { return false }
	}
	if b.handleTimeout <= 0 {
		b.handleTimeout = 2 * time.Minute
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return b
}

// Run получает обновления long polling до отмены ctx и обрабатывает их
// не более чем в workers горутинах. После отмены ждёт завершения начатых обработок.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "pre_checkout_query"}

	updates := b.api.GetUpdatesChan(u)
	b.Serve(ctx, updates)
	b.api.StopReceivingUpdates()
}

// Serve обрабатывает обновления из канала до отмены ctx или закрытия канала.
// Полученное обновление всегда обрабатывается до конца, даже после отмены ctx.
func (b *Bot) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	sem := make(chan struct{}, b.workers)
	defer b.wg.Wait()

	handleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			b.log.Info("stopping update loop")
			return
		}

		select {
		case <-ctx.Done():
			<-sem
			b.log.Info("stopping update loop")
			return
		case update, ok := <-updates:
			if !ok {
				<-sem
				return
			}
			b.wg.Add(1)
			go func() {
				defer func() {
					<-sem
					b.wg.Done()
				}()
				b.HandleUpdate(handleCtx, update)
			}()
		}
	}
}

// HandleUpdate обрабатывает одно обновление. Паника в обработчике
// логируется и не роняет цикл.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", slog.Int("update_id", update.UpdateID), slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.handleTimeout)
	defer cancel()

	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyHTML(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("failed to send message", sl.Err(err))
	}
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		b.log.Error("telegram request failed", sl.Err(err))
	}
}
