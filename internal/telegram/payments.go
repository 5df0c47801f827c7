package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}

	switch {
	case q.Data == callbackCheckSubscription:
		b.callbackCheckSubscription(ctx, q)
	case q.Data == callbackShowPlans:
		b.request(tgbotapi.NewCallback(q.ID, ""))
		if q.Message != nil {
			edit := tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID,
				plansText(b.plans.Sorted()), b.plansKeyboard())
			edit.ParseMode = tgbotapi.ModeHTML
			b.send(edit)
		}
	case strings.HasPrefix(q.Data, callbackBuyPrefix):
		b.callbackBuy(q, strings.TrimPrefix(q.Data, callbackBuyPrefix))
	default:
		b.request(tgbotapi.NewCallback(q.ID, ""))
	}
}

func (b *Bot) callbackCheckSubscription(ctx context.Context, q *tgbotapi.CallbackQuery) {
	member, err := b.access.CheckMembership(ctx, q.From.ID, true)
	if err != nil {
		b.log.Warn("membership check failed", sl.User(q.From.ID), sl.Err(err))
		b.request(tgbotapi.NewCallbackWithAlert(q.ID, textUnavailable))
		return
	}
	if !member {
		b.request(tgbotapi.NewCallbackWithAlert(q.ID, textNotSubscribed))
		return
	}

	if q.Message != nil {
		b.request(tgbotapi.NewDeleteMessage(q.Message.Chat.ID, q.Message.MessageID))
	}
	b.request(tgbotapi.NewCallbackWithAlert(q.ID, textSubscribed))
}

func (b *Bot) callbackBuy(q *tgbotapi.CallbackQuery, planID string) {
	defer b.request(tgbotapi.NewCallback(q.ID, ""))

	plan, ok := b.plans.Get(planID)
	if !ok || q.Message == nil {
		b.reply(q.From.ID, textUnknownPlan)
		return
	}

	title := "Premium " + planTitle(plan)
	invoice := tgbotapi.NewInvoice(q.Message.Chat.ID, title,
		"Unlimited requests to the AI assistant", invoicePayloadPrefix+plan.ID, "",
		"premium_subscription", currencyStars,
		[]tgbotapi.LabeledPrice{{Label: title, Amount: plan.Price}})
	invoice.SuggestedTipAmounts = []int{}

	if _, err := b.api.Send(invoice); err != nil {
		b.log.Error("failed to send invoice", sl.User(q.From.ID), sl.Err(err))
		b.reply(q.Message.Chat.ID, textInvoiceError)
	}
}

// handlePreCheckout подтверждает оплату только известного плана в Stars.
func (b *Bot) handlePreCheckout(_ context.Context, q *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}

	plan, ok := b.planFromPayload(q.InvoicePayload)
	switch {
	case !ok:
		answer.OK = false
		answer.ErrorMessage = textUnknownPlan
	case q.Currency != currencyStars || q.TotalAmount != plan.Price:
		answer.OK = false
		answer.ErrorMessage = textError
	}

	if !answer.OK {
		b.log.Warn("pre-checkout rejected", slog.String("payload", q.InvoicePayload))
	}
	b.request(answer)
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	sp := msg.SuccessfulPayment
	planID, _ := strings.CutPrefix(sp.InvoicePayload, invoicePayloadPrefix)

	payment := models.Payment{
		ExternalID: msg.From.ID,
		PlanID:     planID,
		ChargeID:   sp.TelegramPaymentChargeID,
		Amount:     sp.TotalAmount,
		Currency:   sp.Currency,
	}

	acc, err := b.access.OnPaymentConfirmed(ctx, payment)
	if err != nil {
		b.reply(msg.Chat.ID, textActivationFailed)
		return
	}
	b.reply(msg.Chat.ID, paymentSuccessText(acc))
}

func (b *Bot) planFromPayload(payload string) (models.Plan, bool) {
	planID, ok := strings.CutPrefix(payload, invoicePayloadPrefix)
	if !ok {
		return models.Plan{}, false
	}
	return b.plans.Get(planID)
}
