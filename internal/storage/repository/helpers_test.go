package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateAccount создает тестовую учётную запись с заданным состоянием квоты
func (f *TestDataFactory) CreateAccount(t *testing.T, externalID int64, requestsToday int, lastRequestDate time.Time) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, username, requests_today, last_request_date)
		VALUES ($1, $2, $3, $4::date)`,
		externalID, "user", requestsToday, lastRequestDate.Format(dateLayout))
	require.NoError(t, err)
}

// CreatePremiumAccount создает учётную запись с премиумом до until
func (f *TestDataFactory) CreatePremiumAccount(t *testing.T, externalID int64, until time.Time) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, is_premium, premium_until, requests_today)
		VALUES ($1, TRUE, $2, 5)`,
		externalID, until)
	require.NoError(t, err)
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// AccountCount возвращает количество учётных записей с данным идентификатором
func (v *TestVerification) AccountCount(t *testing.T, externalID int64) int {
	t.Helper()
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM users WHERE user_id = $1", externalID).Scan(&count)
	require.NoError(t, err)
	return count
}

// RequestsToday возвращает значение счётчика из БД
func (v *TestVerification) RequestsToday(t *testing.T, externalID int64) int {
	t.Helper()
	var n int
	err := v.storage.DB.QueryRow("SELECT requests_today FROM users WHERE user_id = $1", externalID).Scan(&n)
	require.NoError(t, err)
	return n
}

func mustLoad(t *testing.T, s *Storage, externalID int64) *models.Account {
	t.Helper()
	acc, err := s.Load(context.Background(), externalID)
	require.NoError(t, err)
	return acc
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := Connect(ctx, connStr, 10, time.Second, newNoopLogger())
	require.NoError(t, err, "Failed to create storage after retries")

	require.NoError(t, migrations.Run(storage.DB))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
