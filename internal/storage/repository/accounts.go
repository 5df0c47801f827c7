package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

const dateLayout = "2006-01-02"

const accountColumns = `id, user_id, username, first_name, last_name,
	is_premium, premium_until, requests_today, last_request_date`

// GetOrCreate возвращает учётную запись пользователя, создавая её с нулевой квотой
// и датой today при первом обращении. Если параллельный вызов успел создать
// запись первым, ограничение уникальности отклоняет вставку, и возвращается
// строка победителя.
func (s *Storage) GetOrCreate(ctx context.Context, externalID int64, profile models.Profile, today time.Time) (*models.Account, error) {
	const op = "storage.GetOrCreate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	acc, err := s.Load(ctx, externalID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO users (user_id, username, first_name, last_name, requests_today, last_request_date)
			  VALUES ($1, $2, $3, $4, 0, $5::date)
			  RETURNING ` + accountColumns
	row := s.DB.QueryRowContext(ctx, query,
		externalID, profile.Username, profile.FirstName, profile.LastName, today.Format(dateLayout))
	acc, err = scanAccount(row)
	if err == nil {
		return acc, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		acc, err = s.Load(ctx, externalID)
		if err != nil {
			return nil, fmt.Errorf("%s: reread after conflict: %w", op, err)
		}
		return acc, nil
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// Load возвращает учётную запись по идентификатору Telegram
// или models.ErrAccountNotFound.
func (s *Storage) Load(ctx context.Context, externalID int64) (*models.Account, error) {
	const op = "storage.Load"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM users WHERE user_id = $1`
	acc, err := scanAccount(s.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// Save сохраняет полное текущее состояние учётной записи.
// Атомарность чтения-изменения-записи обеспечивает вызывающий, см. UpdateAccount.
func (s *Storage) Save(ctx context.Context, acc *models.Account) error {
	const op = "storage.Save"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := saveAccount(ctx, s.DB, acc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateAccount выполняет чтение-изменение-запись одной учётной записи в транзакции,
// удерживая блокировку строки. fn сообщает, изменилась ли запись; неизменённая
// запись не перезаписывается. Ошибка fn или отмена контекста откатывают транзакцию.
func (s *Storage) UpdateAccount(ctx context.Context, externalID int64, fn func(acc *models.Account) (bool, error)) (*models.Account, error) {
	const op = "storage.UpdateAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	acc, err := lockAccount(ctx, tx, externalID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	changed, err := fn(acc)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := saveAccount(ctx, tx, acc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	return acc, nil
}

// Accounts возвращает ленивую последовательность всех учётных записей,
// читая их страницами по batch строк в порядке внутреннего идентификатора.
// Последовательность конечна; повторный вызов начинает обход заново.
func (s *Storage) Accounts(ctx context.Context, batch int) iter.Seq2[models.Account, error] {
	const op = "storage.Accounts"
	if batch <= 0 {
		batch = 500
	}

	return func(yield func(models.Account, error) bool) {
		var after int64
		for {
			page, err := s.accountsPage(ctx, after, batch)
			if err != nil {
				yield(models.Account{}, fmt.Errorf("%s: %w", op, err))
				return
			}
			for _, acc := range page {
				if !yield(acc, nil) {
					return
				}
				after = acc.ID
			}
			if len(page) < batch {
				return
			}
		}
	}
}

func (s *Storage) accountsPage(ctx context.Context, after int64, limit int) ([]models.Account, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM users
			  WHERE id > $1
			  ORDER BY id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	page := make([]models.Account, 0, limit)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, *acc)
	}
	return page, rows.Err()
}

// PremiumExpiring возвращает учётные записи с действующим премиумом,
// который заканчивается в промежутке [from, to).
func (s *Storage) PremiumExpiring(ctx context.Context, from, to time.Time) ([]models.Account, error) {
	const op = "storage.PremiumExpiring"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM users
			  WHERE is_premium AND premium_until >= $1 AND premium_until < $2
			  ORDER BY premium_until, id`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var res []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ResetAllQuotas одним оператором UPDATE обнуляет дневные счётчики всех
// учётных записей, переводит дату на today и снимает истёкший на момент now премиум.
// Возвращает количество затронутых строк.
func (s *Storage) ResetAllQuotas(ctx context.Context, today, now time.Time) (int64, error) {
	const op = "storage.ResetAllQuotas"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET
				requests_today = 0,
				last_request_date = $1::date,
				is_premium = (is_premium AND premium_until IS NOT NULL AND premium_until > $2),
				premium_until = CASE
					WHEN is_premium AND premium_until > $2 THEN premium_until
					ELSE NULL
				END`
	res, err := s.DB.ExecContext(ctx, query, today.Format(dateLayout), now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func lockAccount(ctx context.Context, tx *sql.Tx, externalID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE user_id = $1 FOR UPDATE`
	acc, err := scanAccount(tx.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

func saveAccount(ctx context.Context, db execer, acc *models.Account) error {
	query := `UPDATE users SET
				username = $2,
				first_name = $3,
				last_name = $4,
				is_premium = $5,
				premium_until = $6,
				requests_today = $7,
				last_request_date = $8::date
			  WHERE user_id = $1`

	var premiumUntil sql.NullTime
	if acc.PremiumUntil != nil {
		premiumUntil = sql.NullTime{Time: *acc.PremiumUntil, Valid: true}
	}

	res, err := db.ExecContext(ctx, query,
		acc.ExternalID, acc.Username, acc.FirstName, acc.LastName,
		acc.IsPremium, premiumUntil, acc.RequestsToday, acc.LastRequestDate.Format(dateLayout))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		acc                           models.Account
		username, firstName, lastName sql.NullString
		premiumUntil                  sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.ExternalID, &username, &firstName, &lastName,
		&acc.IsPremium, &premiumUntil, &acc.RequestsToday, &acc.LastRequestDate)
	if err != nil {
		return nil, err
	}

	acc.Username = username.String
	acc.FirstName = firstName.String
	acc.LastName = lastName.String
	if premiumUntil.Valid {
		t := premiumUntil.Time
		acc.PremiumUntil = &t
	}
	acc.LastRequestDate = models.CalendarDate(acc.LastRequestDate)
	return &acc, nil
}
