package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ListColumns возвращает множество имён колонок таблицы table в схеме public.
func (s *Storage) ListColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	const op = "storage.ListColumns"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT column_name FROM information_schema.columns
			  WHERE table_schema = 'public' AND table_name = $1`
	rows, err := s.DB.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return columns, nil
}

// AddColumn добавляет колонку column с определением definition (тип, NOT NULL,
// DEFAULT), если её ещё нет. Существующие колонки не изменяются.
func (s *Storage) AddColumn(ctx context.Context, table, column, definition string) error {
	const op = "storage.AddColumn"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize(), definition)
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %s.%s: %w", op, table, column, err)
	}
	return nil
}
