// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель в том, чтобы единообразно формировать структурированные поля лога:
// ошибку, операцию и идентификатор пользователя.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to admit request", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает slog.Attr с названием операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// User возвращает slog.Attr с идентификатором пользователя в Telegram.
func User(externalID int64) slog.Attr {
	return slog.Int64("user_id", externalID)
}
