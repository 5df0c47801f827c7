// Command bot запускает Telegram-бота с проверкой подписки на канал,
// дневной бесплатной квотой и премиум-подписками.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	botapp "github.com/sergeycommit/ai-tg-bot/internal/app/bot"
	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(os.Stdout, cfg.Env, cfg.LogLevel)

	logger.Info("starting ai-tg-bot", "env", cfg.Env)
	logger.Debug("loaded config", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := botapp.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("ai-tg-bot stopped gracefully")
}
