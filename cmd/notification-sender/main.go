package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	senderapp "github.com/sergeycommit/ai-tg-bot/internal/app/sender"
	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(os.Stdout, cfg.Env, cfg.LogLevel)
	logger.Info("starting notification-sender", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := senderapp.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sender", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("sender stopped with error", sl.Err(err))
		os.Exit(1)
	}
}
