package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sergeycommit/ai-tg-bot/internal/storage/repository"
)

func getTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, table).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db))

	for _, table := range []string{"users", "chat_messages", "payments"} {
		require.True(t, tableExists(t, db, table), "table %s should exist", table)
	}

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'chat_messages'
			AND indexname = 'idx_chat_messages_account'
		)
	`).Scan(&exists)
	require.NoError(t, err)
	require.True(t, exists, "Index should exist")
}

func TestMigrationIdempotency(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db))
	require.NoError(t, Run(db), "Running migrations twice should not fail")
}

func TestEvolve_AlignedSchemaAddsNothing(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db))

	evolver := NewEvolver(&repository.Storage{DB: db}, Schema, &recordingNotifier{}, newNoopLogger())

	report, err := evolver.Evolve(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Added)
	require.Empty(t, report.Failed)
}

func TestEvolve_LegacyTables(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	_, err := db.Exec(`
		CREATE TABLE users (
			id SERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL,
			username VARCHAR
		);
		CREATE TABLE chat_messages (
			id SERIAL PRIMARY KEY,
			account_id INTEGER REFERENCES users(id),
			role VARCHAR,
			content TEXT
		);
		INSERT INTO users (user_id, username) VALUES (42, 'legacy');
	`)
	require.NoError(t, err)
	require.NoError(t, Run(db))

	store := &repository.Storage{DB: db}
	notifier := &recordingNotifier{}
	evolver := NewEvolver(store, Schema, notifier, newNoopLogger())

	first, err := evolver.Evolve(context.Background())
	require.NoError(t, err)
	require.Empty(t, first.Failed)
	require.ElementsMatch(t, []string{
		"users.first_name",
		"users.last_name",
		"users.is_premium",
		"users.premium_until",
		"users.requests_today",
		"users.last_request_date",
		"users.created_at",
		"chat_messages.created_at",
	}, first.Added)

	second, err := evolver.Evolve(context.Background())
	require.NoError(t, err)
	require.Empty(t, second.Added, "second run on an aligned schema must add nothing")

	acc, err := store.Load(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "legacy", acc.Username)
	require.Equal(t, 0, acc.RequestsToday)
	require.False(t, acc.IsPremium)

	require.Len(t, notifier.messages, 2)
}

func TestEvolve_AddedUserIDIsUnique(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	_, err := db.Exec(`CREATE TABLE users (id SERIAL PRIMARY KEY, username VARCHAR)`)
	require.NoError(t, err)
	require.NoError(t, Run(db))

	evolver := NewEvolver(&repository.Storage{DB: db}, Schema, &recordingNotifier{}, newNoopLogger())
	report, err := evolver.Evolve(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Failed)
	require.Contains(t, report.Added, "users.user_id")

	_, err = db.Exec(`INSERT INTO users (user_id, username) VALUES (42, 'first')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (user_id, username) VALUES (42, 'second')`)
	require.Error(t, err, "user_id must stay unique on evolved tables")
}
