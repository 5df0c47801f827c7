// Package config предоставляет структуры и функции для загрузки и проверки
// настроек бота из переменных окружения (и, опционально, YAML-файла).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Политики поведения при недоступности хранилища во время проверки квоты.
const (
	FailClosed = "closed"
	FailOpen   = "open"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local dev prod"`
	LogLevel                string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	StorageDriver           string        `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"postgres" validate:"oneof=postgres memory"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	StorageConnectRetries   int           `yaml:"storage_connect_retries" env:"STORAGE_CONNECT_RETRIES" env-default:"10" validate:"gt=0"`
	StorageConnectDelay     time.Duration `yaml:"storage_connect_delay" env:"STORAGE_CONNECT_DELAY" env-default:"3s"`

	Bot             `yaml:"bot"`
	Quota           `yaml:"quota"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	LLM             `yaml:"llm"`
}

// Bot структура для настройки Telegram-транспорта.
type Bot struct {
	Token      string  `yaml:"token" env:"BOT_TOKEN" env-required:"true"`
	OperatorID int64   `yaml:"operator_id" env:"OPERATOR_ID" env-required:"true" validate:"gt=0"`
	AdminIDs   []int64 `yaml:"admin_ids" env:"ADMIN_IDS" env-separator:","`
	Channel    string  `yaml:"channel" env:"CHANNEL" env-default:"@AI_bots_VIP"`
	ChannelURL string  `yaml:"channel_url" env:"CHANNEL_URL" env-default:"https://t.me/AI_bots_VIP"`
	Workers    int     `yaml:"workers" env:"BOT_WORKERS" env-default:"16" validate:"gt=0"`
	// HistoryLimit количество последних сообщений, передаваемых модели как контекст.
	HistoryLimit       int           `yaml:"history_limit" env:"HISTORY_LIMIT" env-default:"5" validate:"gte=0"`
	MembershipCacheTTL time.Duration `yaml:"membership_cache_ttl" env:"MEMBERSHIP_CACHE_TTL" env-default:"5m"`
	BroadcastRate      float64       `yaml:"broadcast_rate" env:"BROADCAST_RATE" env-default:"25" validate:"gt=0"`
	// ReminderLead за сколько до окончания премиума напоминать пользователю, 0 отключает напоминания.
	ReminderLead     time.Duration `yaml:"reminder_lead" env:"PREMIUM_REMINDER_LEAD" env-default:"24h"`
	ReminderInterval time.Duration `yaml:"reminder_interval" env:"PREMIUM_REMINDER_INTERVAL" env-default:"1h"`
}

// Quota структура для настройки квот и каталога премиум-планов.
type Quota struct {
	FreeRequestsPerDay   int         `yaml:"free_requests_per_day" env:"FREE_REQUESTS_PER_DAY" env-default:"30" validate:"gte=0"`
	Plans                PlanCatalog `yaml:"premium_plans" env:"PREMIUM_PLANS" env-default:"month:100:30,quarter:250:90,year:800:365" validate:"required,dive"`
	Timezone             string      `yaml:"timezone" env:"QUOTA_TIMEZONE" env-default:"UTC"`
	StorageFailurePolicy string      `yaml:"storage_failure_policy" env:"QUOTA_STORAGE_FAILURE_POLICY" env-default:"closed" validate:"oneof=closed open"`

	location *time.Location
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш проверки подписки на канал.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// RabbitMQ структура для настройки очередей уведомлений.
// Пустой URL означает прямую доставку уведомлений через Telegram.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"3s"`
}

// HTTPServer структура для настройки административного HTTP API.
// Пустой адрес отключает сервер.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"ADMIN_HTTP_ADDRESS"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"ADMIN_HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"ADMIN_HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// JWTToken структура для работы с токенами администратора.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
}

// LLM структура для настройки языковой модели и распознавания речи.
type LLM struct {
	APIKey       string        `yaml:"api_key" env:"OR_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	Model        string        `yaml:"model" env:"MODEL"`
	SystemPrompt string        `yaml:"system_prompt" env:"SYSTEM_PROMPT" env-default:"You are a helpful AI assistant."`
	Temperature  float32       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens    int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1000"`
	Timeout      time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
	STTAPIKey    string        `yaml:"stt_api_key" env:"STT_API_KEY"`
	STTBaseURL   string        `yaml:"stt_base_url" env:"STT_BASE_URL" env-default:"https://api.openai.com/v1"`
	STTModel     string        `yaml:"stt_model" env:"STT_MODEL" env-default:"whisper-1"`
}

// Location возвращает часовой пояс, в котором считаются календарные дни квоты.
func (q *Quota) Location() *time.Location {
	if q.location == nil {
		return time.UTC
	}
	return q.location
}

// IsAdmin сообщает, является ли пользователь оператором или администратором.
func (b *Bot) IsAdmin(externalID int64) bool {
	if externalID == b.OperatorID {
		return true
	}
	for _, id := range b.AdminIDs {
		if id == externalID {
			return true
		}
	}
	return false
}

// Load загружает конфигурацию: .env (если есть), YAML из CONFIG_PATH (если задан),
// затем переменные окружения, и проверяет результат.
func Load() (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: read .env: %w", op, err)
	}

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("%s: config file %s: %w", op, configPath, err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфигурацию и завершает процесс с ненулевым кодом при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.StorageDriver == DriverPostgres && c.StorageConnectionString == "" {
		return errors.New("STORAGE_CONNECTION_STRING is required for postgres storage")
	}
	if c.AddressHTTP != "" && c.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY is required when ADMIN_HTTP_ADDRESS is set")
	}
	for id, plan := range c.Plans {
		if plan.ID != id {
			return fmt.Errorf("plan %q is registered under key %q", plan.ID, id)
		}
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid QUOTA_TIMEZONE: %w", err)
	}
	c.location = loc
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageDriver: %s\n"+
			"Bot:\n"+
			"  OperatorID: %d\n"+
			"  AdminIDs: %v\n"+
			"  Channel: %s\n"+
			"  Workers: %d\n"+
			"Quota:\n"+
			"  FreeRequestsPerDay: %d\n"+
			"  Plans: %s\n"+
			"  Timezone: %s\n"+
			"  StorageFailurePolicy: %s\n"+
			"Redis: %s\n"+
			"RabbitMQ enabled: %t\n"+
			"AdminHTTP: %s\n",
		c.Env,
		c.StorageDriver,
		c.OperatorID,
		c.AdminIDs,
		c.Channel,
		c.Workers,
		c.FreeRequestsPerDay,
		c.Plans,
		c.Timezone,
		c.StorageFailurePolicy,
		c.AddressRedis,
		c.RabbitMQURL != "",
		c.AddressHTTP,
	)
}
