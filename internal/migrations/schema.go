package migrations

import "strings"

// Column объявление колонки сущности.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	Default string
	// Critical колонки нужны для решений о допуске и премиуме.
	// Ошибка добавления такой колонки прерывает запуск.
	Critical bool
}

// Definition возвращает определение колонки для ALTER TABLE ... ADD COLUMN.
// NOT NULL добавляется только вместе с DEFAULT, иначе добавление
// в непустую таблицу невозможно.
func (c Column) Definition() string {
	var b strings.Builder
	b.WriteString(c.Type)
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
	}
	return b.String()
}

// Table объявление таблицы и её колонок.
type Table struct {
	Name    string
	Columns []Column
}

// Schema объявленная схема хранилища бота.
var Schema = []Table{
	{
		Name: "users",
		Columns: []Column{
			{Name: "user_id", Type: "BIGINT UNIQUE", Critical: true},
			{Name: "username", Type: "TEXT"},
			{Name: "first_name", Type: "TEXT"},
			{Name: "last_name", Type: "TEXT"},
			{Name: "is_premium", Type: "BOOLEAN", NotNull: true, Default: "FALSE", Critical: true},
			{Name: "premium_until", Type: "TIMESTAMPTZ", Critical: true},
			{Name: "requests_today", Type: "INTEGER", NotNull: true, Default: "0", Critical: true},
			{Name: "last_request_date", Type: "DATE", NotNull: true, Default: "CURRENT_DATE", Critical: true},
			{Name: "created_at", Type: "TIMESTAMPTZ", NotNull: true, Default: "now()"},
		},
	},
	{
		Name: "chat_messages",
		Columns: []Column{
			{Name: "account_id", Type: "BIGINT REFERENCES users(id) ON DELETE CASCADE", Critical: true},
			{Name: "role", Type: "TEXT", NotNull: true, Default: "'user'"},
			{Name: "content", Type: "TEXT", NotNull: true, Default: "''"},
			{Name: "created_at", Type: "TIMESTAMPTZ", NotNull: true, Default: "now()"},
		},
	},
	{
		Name: "payments",
		Columns: []Column{
			{Name: "account_id", Type: "BIGINT REFERENCES users(id)", Critical: true},
			{Name: "plan_id", Type: "TEXT", NotNull: true, Default: "''", Critical: true},
			{Name: "charge_id", Type: "TEXT UNIQUE", Critical: true},
			{Name: "amount", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "currency", Type: "TEXT", NotNull: true, Default: "'XTR'"},
			{Name: "created_at", Type: "TIMESTAMPTZ", NotNull: true, Default: "now()"},
		},
	},
}
