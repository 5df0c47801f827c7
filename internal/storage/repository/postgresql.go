// Package repository реализует хранилище учётных записей на основе PostgreSQL:
// учётные записи с состоянием квоты и премиума, историю диалога, журнал
// платежей и интроспекцию колонок для эволюции схемы.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Connect подключается к PostgreSQL, повторяя попытку не более retries раз
// с фиксированной паузой delay. После исчерпания попыток возвращает последнюю ошибку.
func Connect(ctx context.Context, storageConnectionString string, retries int, delay time.Duration, log *slog.Logger) (*Storage, error) {
	const op = "storage.Connect"

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		storage, err := New(storageConnectionString)
		if err == nil {
			return storage, nil
		}
		lastErr = err
		log.Warn("postgres is not ready",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retries),
			sl.Err(err))

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s: after %d attempts: %w", op, retries, lastErr)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы данных.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
