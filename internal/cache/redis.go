// Package cache хранит в redis результаты проверки подписки на канал.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sergeycommit/ai-tg-bot/internal/config"
)

const membershipPrefix = "membership:"

// Cache обёртка над клиентом redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает JSON-значение по ключу. Отсутствие ключа не ошибка.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON с временем жизни expiration.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключ.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkOnce атомарно создаёт ключ-отметку с временем жизни ttl.
// Возвращает false, если отметка уже существует.
func (c *Cache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "cache.MarkOnce"
	created, err := c.Db.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// MembershipKey ключ кеша подписки пользователя на канал.
func MembershipKey(userID int64) string {
	return membershipPrefix + strconv.FormatInt(userID, 10)
}

// IsMember сообщает, подтверждена ли подписка пользователя ранее.
// Кешируются только положительные результаты.
func (c *Cache) IsMember(ctx context.Context, userID int64) (bool, error) {
	var member bool
	found, err := c.Get(ctx, MembershipKey(userID), &member)
	if err != nil {
		return false, err
	}
	return found && member, nil
}

// RememberMember запоминает подтверждённую подписку на ttl.
func (c *Cache) RememberMember(ctx context.Context, userID int64, ttl time.Duration) error {
	return c.Set(ctx, MembershipKey(userID), true, ttl)
}

// ForgetMember сбрасывает запомненную подписку.
func (c *Cache) ForgetMember(ctx context.Context, userID int64) error {
	return c.Invalidate(ctx, MembershipKey(userID))
}
