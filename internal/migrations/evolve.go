package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// ColumnStore интроспекция и добавление колонок в хранилище.
type ColumnStore interface {
	ListColumns(ctx context.Context, table string) (map[string]struct{}, error)
	AddColumn(ctx context.Context, table, column, definition string) error
}

// Notifier канал уведомлений оператора.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// Failure неудавшийся шаг миграции.
type Failure struct {
	Table    string
	Column   string
	Critical bool
	Err      error
}

// Report итог одного прогона Evolve.
type Report struct {
	Added  []string // "table.column"
	Failed []Failure
}

// Evolver добавляет в таблицы объявленные колонки, которых нет в хранилище.
// Существующие колонки никогда не удаляются и не изменяются.
type Evolver struct {
	store    ColumnStore
	tables   []Table
	notifier Notifier
	log      *slog.Logger
}

// NewEvolver создаёт Evolver для объявленной схемы tables.
func NewEvolver(store ColumnStore, tables []Table, notifier Notifier, log *slog.Logger) *Evolver {
	return &Evolver{
		store:    store,
		tables:   tables,
		notifier: notifier,
		log:      log,
	}
}

// Evolve сравнивает объявленные колонки с фактическими и добавляет недостающие,
// каждую отдельным идемпотентным шагом. Уже добавленные колонки при ошибке
// не откатываются. Ошибка на некритичной колонке попадает в отчёт, и прогон
// продолжается; ошибка на критичной останавливает прогон и возвращается
// как models.ErrMigrationStepFailed. Оператор уведомляется в обоих случаях.
func (e *Evolver) Evolve(ctx context.Context) (Report, error) {
	const op = "migrations.Evolve"
	log := e.log.With(sl.Op(op))

	var report Report
	err := e.evolve(ctx, &report)
	if err != nil {
		log.Error("schema evolution failed",
			slog.Int("added", len(report.Added)),
			slog.Int("failed", len(report.Failed)),
			sl.Err(err))
		e.notifier.NotifyOperator(ctx, "❌ Database migration failed!\nError: "+err.Error())
		return report, fmt.Errorf("%s: %w", op, err)
	}

	for _, f := range report.Failed {
		log.Warn("non-critical column was not added",
			slog.String("table", f.Table),
			slog.String("column", f.Column),
			sl.Err(f.Err))
	}
	log.Info("schema evolution completed",
		slog.Int("added", len(report.Added)),
		slog.Int("failed", len(report.Failed)))
	e.notifier.NotifyOperator(ctx, successText(report))
	return report, nil
}

func (e *Evolver) evolve(ctx context.Context, report *Report) error {
	for _, table := range e.tables {
		existing, err := e.store.ListColumns(ctx, table.Name)
		if err != nil {
			return errors.Join(models.ErrMigrationStepFailed, err)
		}
		if len(existing) == 0 {
			return errors.Join(models.ErrMigrationStepFailed, fmt.Errorf("table %s does not exist", table.Name))
		}

		for _, col := range table.Columns {
			if _, ok := existing[col.Name]; ok {
				continue
			}
			if err := e.store.AddColumn(ctx, table.Name, col.Name, col.Definition()); err != nil {
				report.Failed = append(report.Failed, Failure{
					Table:    table.Name,
					Column:   col.Name,
					Critical: col.Critical,
					Err:      err,
				})
				if col.Critical {
					return errors.Join(models.ErrMigrationStepFailed, err)
				}
				continue
			}
			report.Added = append(report.Added, table.Name+"."+col.Name)
			e.log.Info("column added",
				slog.String("table", table.Name),
				slog.String("column", col.Name),
				slog.String("definition", col.Definition()))
		}
	}
	return nil
}

func successText(r Report) string {
	var b strings.Builder
	b.WriteString("✅ Database migrations completed successfully!\n")
	if len(r.Added) == 0 {
		b.WriteString("All tables and columns are up to date.")
	} else {
		b.WriteString("Added columns: ")
		b.WriteString(strings.Join(r.Added, ", "))
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n⚠️ %s.%s skipped: %s", f.Table, f.Column, f.Err)
	}
	return b.String()
}
