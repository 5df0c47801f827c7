package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// SaveMessage добавляет сообщение в историю диалога пользователя.
// Время создания назначает сервер.
func (s *Storage) SaveMessage(ctx context.Context, externalID int64, role, content string) error {
	const op = "storage.SaveMessage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO chat_messages (account_id, role, content)
			  SELECT id, $2, $3 FROM users WHERE user_id = $1`
	res, err := s.DB.ExecContext(ctx, query, externalID, role, content)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// RecentMessages возвращает не более limit последних сообщений пользователя
// в хронологическом порядке.
func (s *Storage) RecentMessages(ctx context.Context, externalID int64, limit int) ([]models.Message, error) {
	const op = "storage.RecentMessages"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT m.id, m.account_id, m.role, m.content, m.created_at
			  FROM chat_messages m
			  JOIN users u ON u.id = m.account_id
			  WHERE u.user_id = $1
			  ORDER BY m.created_at DESC, m.id DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, externalID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	slices.Reverse(result)
	return result, nil
}

// DeleteMessages удаляет всю историю диалога пользователя
// и возвращает количество удалённых сообщений.
func (s *Storage) DeleteMessages(ctx context.Context, externalID int64) (int64, error) {
	const op = "storage.DeleteMessages"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM chat_messages
			  WHERE account_id = (SELECT id FROM users WHERE user_id = $1)`
	res, err := s.DB.ExecContext(ctx, query, externalID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
