// Package activation применяет подтверждённые платежи и ручные выдачи
// к учётным записям: включает премиум или продлевает действующий.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// AccountStore определяет методы хранилища, нужные сервису активации.
type AccountStore interface {
	UpdateAccount(ctx context.Context, externalID int64, fn func(acc *models.Account) (bool, error)) (*models.Account, error)
	ApplyPayment(ctx context.Context, payment models.Payment, fn func(acc *models.Account) error) (*models.Account, bool, error)
}

// PlanCatalog каталог премиум-планов.
type PlanCatalog interface {
	Get(id string) (models.Plan, bool)
}

// Notifier канал уведомлений оператора.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// Recorder учитывает результаты активаций.
type Recorder interface {
	ObserveActivation(planID string, ok bool)
}

// Service сервис активации премиума.
type Service struct {
	store    AccountStore
	plans    PlanCatalog
	notifier Notifier
	recorder Recorder
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт Service. recorder может быть nil.
func New(store AccountStore, plans PlanCatalog, notifier Notifier, recorder Recorder, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		plans:    plans,
		notifier: notifier,
		recorder: recorder,
		now:      time.Now,
		log:      log,
	}
}

// Extend продлевает премиум учётной записи на d от момента now.
// Действующий премиум наращивается от своего окончания, иначе отсчёт идёт от now.
func Extend(acc *models.Account, now time.Time, d time.Duration) {
	start := now
	if acc.PremiumActive(now) {
		start = *acc.PremiumUntil
	}
	until := start.Add(d)
	acc.IsPremium = true
	acc.PremiumUntil = &until
}

// Activate выдаёт пользователю премиум длительностью d.
// Возвращает models.ErrAccountNotFound, если учётная запись не создана.
func (s *Service) Activate(ctx context.Context, externalID int64, d time.Duration) (*models.Account, error) {
	const op = "activation.Activate"

	if d <= 0 {
		return nil, fmt.Errorf("%s: non-positive duration %s", op, d)
	}

	now := s.now()
	acc, err := s.store.UpdateAccount(ctx, externalID, func(acc *models.Account) (bool, error) {
		Extend(acc, now, d)
		return true, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("premium activated",
		sl.User(externalID),
		slog.Duration("duration", d),
		slog.Time("premium_until", *acc.PremiumUntil))
	return acc, nil
}

// Grant выдаёт премиум по плану из каталога без платежа.
func (s *Service) Grant(ctx context.Context, externalID int64, planID string) (*models.Account, error) {
	plan, ok := s.plans.Get(planID)
	if !ok {
		return nil, fmt.Errorf("activation.Grant: %q: %w", planID, models.ErrUnknownPlan)
	}
	return s.Activate(ctx, externalID, plan.Duration())
}

// ConfirmPayment применяет принятый платёжной системой платёж. Повторная доставка
// того же платежа ничего не меняет. Любая ошибка означает, что деньги приняты,
// а премиум не выдан: она логируется, передаётся оператору и возвращается
// как models.ErrActivationAfterPaymentFailed.
func (s *Service) ConfirmPayment(ctx context.Context, payment models.Payment) (*models.Account, error) {
	const op = "activation.ConfirmPayment"

	acc, applied, err := s.confirm(ctx, payment)
	if err != nil {
		s.escalate(ctx, payment, err)
		s.observe(payment.PlanID, false)
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrActivationAfterPaymentFailed, err)
	}
	s.observe(payment.PlanID, true)

	if !applied {
		s.log.Warn("duplicate payment ignored",
			sl.User(payment.ExternalID),
			slog.String("charge_id", payment.ChargeID))
		return acc, nil
	}

	s.log.Info("payment applied",
		sl.User(payment.ExternalID),
		slog.String("plan", payment.PlanID),
		slog.String("charge_id", payment.ChargeID),
		slog.Time("premium_until", *acc.PremiumUntil))
	return acc, nil
}

func (s *Service) confirm(ctx context.Context, payment models.Payment) (*models.Account, bool, error) {
	plan, ok := s.plans.Get(payment.PlanID)
	if !ok {
		return nil, false, fmt.Errorf("plan %q: %w", payment.PlanID, models.ErrUnknownPlan)
	}

	now := s.now()
	return s.store.ApplyPayment(ctx, payment, func(acc *models.Account) error {
		Extend(acc, now, plan.Duration())
		return nil
	})
}

func (s *Service) escalate(ctx context.Context, payment models.Payment, err error) {
	incident := uuid.New().String()
	s.log.Error("payment accepted but premium not activated",
		slog.String("incident", incident),
		sl.User(payment.ExternalID),
		slog.String("plan", payment.PlanID),
		slog.String("charge_id", payment.ChargeID),
		slog.Int("amount", payment.Amount),
		sl.Err(err))

	s.notifier.NotifyOperator(context.WithoutCancel(ctx), fmt.Sprintf(
		"🚨 Payment accepted but premium NOT activated\n"+
			"Incident: %s\nUser: %d\nPlan: %s\nCharge: %s\nAmount: %d %s\nError: %s\n"+
			"Grant manually: /grant %d %s",
		incident, payment.ExternalID, payment.PlanID, payment.ChargeID,
		payment.Amount, payment.Currency, err,
		payment.ExternalID, payment.PlanID))
}

func (s *Service) observe(planID string, ok bool) {
	if s.recorder != nil {
		s.recorder.ObserveActivation(planID, ok)
	}
}
