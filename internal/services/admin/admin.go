// Package admin выполняет административные операции оператора:
// миграции, сброс квот, ручную выдачу премиума и рассылку.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

var (
	// ErrMigrationInProgress миграция уже выполняется.
	ErrMigrationInProgress = errors.New("migration already in progress")
	// ErrEmptyBroadcast текст рассылки пуст.
	ErrEmptyBroadcast = errors.New("broadcast text is empty")
	// ErrInvalidGrant не указан ни план, ни число дней от 1 до MaxGrantDays.
	ErrInvalidGrant = errors.New("plan or days between 1 and 3650 required")
)

// MaxGrantDays наибольший срок ручной выдачи премиума в днях.
const MaxGrantDays = 3650

// Evolver приводит схему хранилища к объявленной.
type Evolver interface {
	Evolve(ctx context.Context) (migrations.Report, error)
}

// Quota операции движка квот.
type Quota interface {
	Status(ctx context.Context, externalID int64) (*models.Account, error)
	ResetOne(ctx context.Context, externalID int64) (*models.Account, error)
	ResetAll(ctx context.Context) (int64, error)
}

// Activation ручная выдача премиума.
type Activation interface {
	Activate(ctx context.Context, externalID int64, d time.Duration) (*models.Account, error)
	Grant(ctx context.Context, externalID int64, planID string) (*models.Account, error)
}

// Payments история платежей пользователя.
type Payments interface {
	ListPayments(ctx context.Context, externalID int64) ([]*models.Payment, error)
}

// Broadcaster фоновая рассылка.
type Broadcaster interface {
	Start(ctx context.Context, text string) string
}

// Recorder метрики миграций.
type Recorder interface {
	ObserveMigration(added, failed int, err error)
}

// Service административный сервис.
type Service struct {
	evolver     Evolver
	quota       Quota
	activation  Activation
	payments    Payments
	broadcaster Broadcaster
	recorder    Recorder
	migrateMu   sync.Mutex
	log         *slog.Logger
}

// New создаёт Service. recorder может быть nil.
func New(evolver Evolver, quota Quota, activation Activation, payments Payments, broadcaster Broadcaster, recorder Recorder, log *slog.Logger) *Service {
	return &Service{
		evolver:     evolver,
		quota:       quota,
		activation:  activation,
		payments:    payments,
		broadcaster: broadcaster,
		recorder:    recorder,
		log:         log,
	}
}

// Migrate выполняет эволюцию схемы. Одновременно выполняется не более одного прогона.
func (s *Service) Migrate(ctx context.Context) (migrations.Report, error) {
	const op = "admin.Migrate"

	if !s.migrateMu.TryLock() {
		return migrations.Report{}, fmt.Errorf("%s: %w", op, ErrMigrationInProgress)
	}
	defer s.migrateMu.Unlock()

	report, err := s.evolver.Evolve(ctx)
	if s.recorder != nil {
		s.recorder.ObserveMigration(len(report.Added), len(report.Failed), err)
	}
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// Account возвращает текущее состояние учётной записи.
func (s *Service) Account(ctx context.Context, externalID int64) (*models.Account, error) {
	return s.quota.Status(ctx, externalID)
}

// Payments возвращает платежи пользователя, новые первыми. Используется для
// ручной сверки, если премиум не активировался после оплаты.
func (s *Service) Payments(ctx context.Context, externalID int64) ([]*models.Payment, error) {
	const op = "admin.Payments"

	payments, err := s.payments.ListPayments(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}

// ResetOne обнуляет дневной счётчик пользователя.
func (s *Service) ResetOne(ctx context.Context, externalID int64) (*models.Account, error) {
	return s.quota.ResetOne(ctx, externalID)
}

// ResetAll обнуляет дневные счётчики всех пользователей.
func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	return s.quota.ResetAll(ctx)
}

// Grant выдаёт премиум по плану или на days дней, если план не указан.
func (s *Service) Grant(ctx context.Context, externalID int64, planID string, days int) (*models.Account, error) {
	const op = "admin.Grant"

	var (
		acc *models.Account
		err error
	)
	switch {
	case planID != "":
		acc, err = s.activation.Grant(ctx, externalID, planID)
	case days > 0 && days <= MaxGrantDays:
		acc, err = s.activation.Activate(ctx, externalID, time.Duration(days)*24*time.Hour)
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGrant)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("premium granted manually",
		sl.User(externalID),
		slog.String("plan", planID),
		slog.Int("days", days))
	return acc, nil
}

// Broadcast запускает фоновую рассылку и возвращает идентификатор задания.
func (s *Service) Broadcast(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("admin.Broadcast: %w", ErrEmptyBroadcast)
	}
	return s.broadcaster.Start(ctx, text), nil
}
