package telegram

import (
	"fmt"
	"strings"

	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

const (
	textError            = "An error occurred. Please try again later."
	textMessageError     = "Sorry, an error occurred while processing your message."
	textVoiceError       = "Sorry, there was an error processing your voice message. Please try again."
	textVoiceNotRecog    = "Sorry, I couldn't understand the voice message. Please try again."
	textAssistantDown    = "Sorry, I'm having trouble connecting to the AI right now. Please try again later."
	textUnavailable      = "⚠️ The service is temporarily unavailable. Please try again later."
	textNeedStart        = "Please send /start first."
	textAdminOnly        = "❌ This command is only available for administrators."
	textHistoryCleared   = "Chat history has been cleared!"
	textInvoiceError     = "❌ An error occurred while creating the invoice. Please try again later."
	textActivationFailed = "❌ An error occurred while activating your premium subscription. Our team has been notified and will fix it shortly."
	textSubscribed       = "Thank you for subscribing! You can now use the bot."
	textNotSubscribed    = "You are not subscribed to the channel yet!"
	textUnknownPlan      = "This plan is no longer available."

	textLimitReached = "⚠️ You've reached your daily message limit.\n" +
		"Upgrade to Premium for unlimited access!\n" +
		"Use /premium to see available plans."

	textSubscribe = "⚠️ To use the bot, you need to subscribe to our channel first!\n" +
		"After subscribing, click the 'Check Subscription' button."

	textHelp = "🤖 <b>AI Assistant Bot</b>\n\n" +
		"I'm an AI-powered bot that can help you with various tasks:\n" +
		"• Answer your questions\n" +
		"• Process voice messages\n" +
		"• Help with text analysis\n\n" +
		"<b>Available Commands:</b>\n" +
		"• /start - Start the bot\n" +
		"• /help - Show this help message\n" +
		"• /premium - Get premium subscription\n" +
		"• /status - Show your limits\n" +
		"• /clear - Clear chat history\n\n" +
		"<b>Free Usage:</b>\n" +
		"• %d free requests per day\n\n" +
		"<b>Premium Features:</b>\n" +
		"• Unlimited requests\n" +
		"• Priority support\n"

	textAdminHelp = "\n<b>Admin Commands:</b>\n" +
		"• /migrate - Apply database migrations\n" +
		"• /reset &lt;user_id&gt; - Reset daily quota\n" +
		"• /resetall - Reset all daily quotas\n" +
		"• /grant &lt;user_id&gt; &lt;plan|days&gt; - Grant premium\n" +
		"• /broadcast &lt;text&gt; - Message all users\n"

	callbackCheckSubscription = "check_subscription"
	callbackShowPlans         = "show_premium_plans"
	callbackBuyPrefix         = "buy_premium:"
	invoicePayloadPrefix      = "premium_subscription:"
	currencyStars             = "XTR"
	dateLayout                = "02.01.2006"
)

func welcomeText(firstName string) string {
	return fmt.Sprintf("👋 Hello, %s!\n\n"+
		"I'm an AI bot that can:\n"+
		"• Answer your questions\n"+
		"• Process voice messages\n"+
		"• Help with various tasks\n\n"+
		"Just send me a message!\n"+
		"Use /premium to get unlimited access!", firstName)
}

func planTitle(p models.Plan) string {
	switch p.DurationDays {
	case 7:
		return "1 Week"
	case 30:
		return "1 Month"
	case 90:
		return "3 Months"
	case 180:
		return "6 Months"
	case 365:
		return "1 Year"
	default:
		return fmt.Sprintf("%d Days", p.DurationDays)
	}
}

func plansText(plans []models.Plan) string {
	var b strings.Builder
	b.WriteString("🌟 <b>Premium Subscription</b>\n\n")
	b.WriteString("Choose the plan that suits you best:\n\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "<b>%s</b>\n💰 Price: %d Stars\n%d days of unlimited requests\n\n",
			planTitle(p), p.Price, p.DurationDays)
	}
	b.WriteString("Click the button below to select a plan and proceed with payment.")
	return b.String()
}

func paymentSuccessText(acc *models.Account) string {
	until := "-"
	if acc.PremiumUntil != nil {
		until = acc.PremiumUntil.Format(dateLayout)
	}
	return "✅ Thank you for purchasing Premium!\n\n" +
		"Your premium subscription is active until: " + until + "\n\n" +
		"You now have access to:\n" +
		"• Unlimited requests\n" +
		"• Priority support"
}

func migrationText(r migrations.Report, err error) string {
	if err != nil {
		return "❌ Error applying database migrations: " + err.Error()
	}
	if len(r.Added) == 0 {
		return "✅ Database migrations applied successfully! Schema is up to date."
	}
	return fmt.Sprintf("✅ Database migrations applied successfully! Added %d columns: %s",
		len(r.Added), strings.Join(r.Added, ", "))
}
