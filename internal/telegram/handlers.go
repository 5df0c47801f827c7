package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// voiceLimit ограничивает размер скачиваемого голосового сообщения.
const voiceLimit = 20 << 20

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, msg)
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" && msg.Voice == nil {
		return
	}
	b.handleRequest(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, msg)
	case "help":
		b.cmdHelp(msg)
	case "premium":
		b.replyHTML(msg.Chat.ID, plansText(b.plans.Sorted()), b.plansKeyboard())
	case "status":
		b.cmdStatus(ctx, msg)
	case "clear":
		b.cmdClear(ctx, msg)
	case "migrate", "reset", "resetall", "grant", "broadcast":
		b.handleAdminCommand(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	profile := models.Profile{
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	if _, err := b.access.OnContact(ctx, msg.From.ID, profile); err != nil {
		b.log.Error("failed to register user", sl.User(msg.From.ID), sl.Err(err))
		b.reply(msg.Chat.ID, textError)
		return
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🌟 Get Premium", callbackShowPlans)),
	)
	out := tgbotapi.NewMessage(msg.Chat.ID, welcomeText(msg.From.FirstName))
	out.ReplyMarkup = markup
	b.send(out)
}

func (b *Bot) cmdHelp(msg *tgbotapi.Message) {
	text := fmt.Sprintf(textHelp, b.freeRequests)
	if b.isAdmin(msg.From.ID) {
		text += textAdminHelp
	}
	b.replyHTML(msg.Chat.ID, text, nil)
}

func (b *Bot) cmdStatus(ctx context.Context, msg *tgbotapi.Message) {
	view, err := b.access.Status(ctx, msg.From.ID)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		b.reply(msg.Chat.ID, textNeedStart)
		return
	case err != nil:
		b.log.Error("failed to load status", sl.User(msg.From.ID), sl.Err(err))
		b.reply(msg.Chat.ID, textUnavailable)
		return
	}

	if view.Premium && view.PremiumUntil != nil {
		b.reply(msg.Chat.ID, "🌟 Premium is active until "+view.PremiumUntil.Format(dateLayout)+".")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("📊 Requests today: %d of %d.\nUse /premium to get unlimited access!",
		view.RequestsToday, view.Limit))
}

func (b *Bot) cmdClear(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.access.ClearHistory(ctx, msg.From.ID); err != nil {
		b.log.Error("failed to clear history", sl.User(msg.From.ID), sl.Err(err))
		b.reply(msg.Chat.ID, textError)
		return
	}
	b.reply(msg.Chat.ID, textHistoryCleared)
}

// handleRequest проверяет подписку и квоту, затем отвечает моделью.
func (b *Bot) handleRequest(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	log := b.log.With(sl.User(userID))

	member, err := b.access.CheckMembership(ctx, userID, false)
	if err != nil {
		log.Warn("membership check failed", sl.Err(err))
		b.reply(msg.Chat.ID, textUnavailable)
		return
	}
	if !member {
		b.sendSubscribe(msg.Chat.ID)
		return
	}

	decision, err := b.access.OnRequest(ctx, userID)
	if err != nil {
		log.Error("admission failed", sl.Err(err))
	}
	if !decision.Allowed {
		switch decision.Reason {
		case models.ReasonQuotaExceeded:
			b.reply(msg.Chat.ID, textLimitReached)
		case models.ReasonUnknownAccount:
			b.reply(msg.Chat.ID, textNeedStart)
		default:
			b.reply(msg.Chat.ID, textUnavailable)
		}
		return
	}

	prompt := msg.Text
	if msg.Voice != nil {
		prompt, err = b.transcribe(ctx, msg.Voice)
		if err != nil {
			log.Error("failed to transcribe voice", sl.Err(err))
			b.reply(msg.Chat.ID, textVoiceError)
			return
		}
		if prompt == "" {
			b.reply(msg.Chat.ID, textVoiceNotRecog)
			return
		}
	}

	history, err := b.access.History(ctx, userID)
	if err != nil {
		log.Warn("failed to load history", sl.Err(err))
	}

	answer, err := b.assistant.Complete(ctx, history, prompt)
	if err != nil {
		log.Error("assistant failed", sl.Err(err))
		b.reply(msg.Chat.ID, textAssistantDown)
		return
	}

	if err := b.access.Remember(ctx, userID, prompt, answer); err != nil {
		log.Warn("failed to save history", sl.Err(err))
	}
	b.reply(msg.Chat.ID, answer)
}

func (b *Bot) transcribe(ctx context.Context, voice *tgbotapi.Voice) (string, error) {
	const op = "telegram.transcribe"

	url, err := b.api.GetFileDirectURL(voice.FileID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: download status %d", op, resp.StatusCode)
	}

	text, err := b.assistant.Transcribe(ctx, "voice.ogg", io.LimitReader(resp.Body, voiceLimit))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return text, nil
}

func (b *Bot) sendSubscribe(chatID int64) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Subscribe to Channel", b.channelURL),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Check Subscription", callbackCheckSubscription),
		),
	)
	out := tgbotapi.NewMessage(chatID, textSubscribe)
	out.ReplyMarkup = markup
	b.send(out)
}

func (b *Bot) plansKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range b.plans.Sorted() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Buy "+planTitle(p), callbackBuyPrefix+p.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
