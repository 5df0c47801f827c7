// Command admin-token выпускает токен администратора для HTTP API бота.
//
//	JWT_SECRET_KEY=... admin-token -subject alice -ttl 12h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sergeycommit/ai-tg-bot/internal/config"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/jwt"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime, JWT_TOKEN_TTL when zero")
	flag.Parse()

	// Полная конфигурация бота здесь не нужна, читаются только настройки токена.
	var cfg config.JWTToken
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	if cfg.JWTSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	if *ttl > 0 {
		cfg.TokenTTL = *ttl
	}

	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(*subject, jwt.RoleAdmin)
	if err != nil {
		log.Fatalf("cannot generate token: %s", err)
	}
	fmt.Fprintln(os.Stdout, token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Now().Add(cfg.TokenTTL).UTC().Format(time.RFC3339))
}
