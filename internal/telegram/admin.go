package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, textAdminOnly)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	log := b.log.With(sl.User(msg.From.ID), slog.String("command", msg.Command()))

	switch msg.Command() {
	case "migrate":
		b.reply(msg.Chat.ID, "🔄 Applying database migrations...")
		report, err := b.admin.Migrate(ctx)
		if err != nil {
			log.Error("migration command failed", sl.Err(err))
		}
		b.reply(msg.Chat.ID, migrationText(report, err))

	case "reset":
		id, ok := parseUserID(args)
		if !ok {
			b.reply(msg.Chat.ID, "Usage: /reset <user_id>")
			return
		}
		if _, err := b.admin.ResetOne(ctx, id); err != nil {
			log.Error("reset failed", sl.Err(err))
			b.reply(msg.Chat.ID, "❌ Reset failed: "+err.Error())
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Daily quota of user %d has been reset.", id))

	case "resetall":
		n, err := b.admin.ResetAll(ctx)
		if err != nil {
			log.Error("reset all failed", sl.Err(err))
			b.reply(msg.Chat.ID, "❌ Reset failed: "+err.Error())
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Daily quotas reset for %d users.", n))

	case "grant":
		id, ok := parseUserID(args)
		if !ok || len(args) != 2 {
			b.reply(msg.Chat.ID, "Usage: /grant <user_id> <plan|days>")
			return
		}
		planID, days := args[1], 0
		if n, err := strconv.Atoi(args[1]); err == nil {
			planID, days = "", n
		}
		acc, err := b.admin.Grant(ctx, id, planID, days)
		if err != nil {
			log.Error("grant failed", sl.Err(err))
			b.reply(msg.Chat.ID, "❌ Grant failed: "+err.Error())
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ User %d has premium until %s.", id, acc.PremiumUntil.Format(dateLayout)))

	case "broadcast":
		jobID, err := b.admin.Broadcast(ctx, msg.CommandArguments())
		if err != nil {
			b.reply(msg.Chat.ID, "Usage: /broadcast <text>")
			return
		}
		b.reply(msg.Chat.ID, "📣 Broadcast "+jobID+" started. You will get a report when it finishes.")
	}
}

func parseUserID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
