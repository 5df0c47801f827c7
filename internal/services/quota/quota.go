// Package quota принимает решение о допуске каждого входящего запроса:
// сбрасывает дневной счётчик при смене календарного дня, снимает истёкший
// премиум, пропускает операторов и премиум-пользователей без учёта квоты
// и расходует бесплатную дневную квоту остальных.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// Политики на случай недоступности хранилища.
const (
	FailClosed = "closed"
	FailOpen   = "open"
)

// AccountStore определяет методы хранилища, нужные движку квот.
type AccountStore interface {
	// Load возвращает учётную запись или models.ErrAccountNotFound.
	Load(ctx context.Context, externalID int64) (*models.Account, error)
	// UpdateAccount атомарно выполняет чтение-изменение-запись одной учётной записи.
	UpdateAccount(ctx context.Context, externalID int64, fn func(acc *models.Account) (bool, error)) (*models.Account, error)
	// ResetAllQuotas сбрасывает квоты всех учётных записей одним оператором.
	ResetAllQuotas(ctx context.Context, today, now time.Time) (int64, error)
}

// Recorder принимает решения для метрик.
type Recorder interface {
	ObserveDecision(d models.Decision)
}

// Options настройки движка.
type Options struct {
	FreeRequestsPerDay int
	Location           *time.Location
	// IsOperator сообщает, относится ли пользователь к операторам или администраторам.
	IsOperator func(externalID int64) bool
	// StorageFailurePolicy FailClosed или FailOpen.
	StorageFailurePolicy string
	Recorder             Recorder
	Now                  func() time.Time
}

// Engine движок квот и подписок.
type Engine struct {
	store      AccountStore
	limit      int
	loc        *time.Location
	isOperator func(int64) bool
	failOpen   bool
	recorder   Recorder
	now        func() time.Time
	log        *slog.Logger
}

// New создаёт Engine.
func New(store AccountStore, opts Options, log *slog.Logger) *Engine {
	e := &Engine{
		store:      store,
		limit:      opts.FreeRequestsPerDay,
		loc:        opts.Location,
		isOperator: opts.IsOperator,
		failOpen:   opts.StorageFailurePolicy == FailOpen,
		recorder:   opts.Recorder,
		now:        opts.Now,
		log:        log,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.isOperator == nil {
		e.isOperator = func(int64) bool { return false }
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Limit возвращает дневной бесплатный лимит.
func (e *Engine) Limit() int {
	return e.limit
}

// Today возвращает текущую календарную дату в часовом поясе квоты.
func (e *Engine) Today() time.Time {
	return models.Date(e.now(), e.loc)
}

// Admit принимает решение о допуске запроса пользователя externalID в текущий момент.
func (e *Engine) Admit(ctx context.Context, externalID int64) (models.Decision, error) {
	return e.AdmitAt(ctx, externalID, e.now())
}

// AdmitAt принимает решение о допуске запроса в момент now.
//
// Отсутствие учётной записи и исчерпанная квота возвращаются как запрещающее
// решение без ошибки. При ошибке хранилища поведение определяется политикой:
// FailClosed возвращает запрет и ошибку, оборачивающую models.ErrStorageUnavailable,
// FailOpen возвращает разрешение с причиной ReasonStorageFailOpen.
func (e *Engine) AdmitAt(ctx context.Context, externalID int64, now time.Time) (models.Decision, error) {
	const op = "quota.Admit"

	var decision models.Decision
	_, err := e.store.UpdateAccount(ctx, externalID, func(acc *models.Account) (bool, error) {
		var changed bool
		decision, changed = Evaluate(acc, now, e.loc, e.limit, e.isOperator(externalID))
		return changed, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, models.ErrAccountNotFound):
		decision = models.Deny(models.ReasonUnknownAccount)
		decision.Limit = e.limit
	case ctx.Err() != nil:
		return models.Deny(models.ReasonStorageFailure), fmt.Errorf("%s: %w", op, err)
	case e.failOpen:
		e.log.Error("storage failure, admitting request",
			sl.Op(op), sl.User(externalID), sl.Err(err))
		decision = models.Allow(models.ReasonStorageFailOpen)
		decision.Limit = e.limit
	default:
		e.log.Error("storage failure, denying request",
			sl.Op(op), sl.User(externalID), sl.Err(err))
		decision = models.Deny(models.ReasonStorageFailure)
		decision.Limit = e.limit
		e.observe(decision)
		return decision, fmt.Errorf("%s: user %d: %w: %w", op, externalID, models.ErrStorageUnavailable, err)
	}

	e.observe(decision)
	return decision, nil
}

// Evaluate применяет к учётной записи правила смены дня, истечения премиума
// и допуска. Сообщает, изменилась ли запись.
func Evaluate(acc *models.Account, now time.Time, loc *time.Location, limit int, operator bool) (models.Decision, bool) {
	var changed bool

	today := models.Date(now, loc)
	if acc.LastRequestDate.Before(today) {
		acc.RequestsToday = 0
		acc.LastRequestDate = today
		changed = true
	}

	if acc.IsPremium && (acc.PremiumUntil == nil || !acc.PremiumUntil.After(now)) {
		acc.IsPremium = false
		acc.PremiumUntil = nil
		changed = true
	} else if !acc.IsPremium && acc.PremiumUntil != nil && !acc.PremiumUntil.After(now) {
		acc.PremiumUntil = nil
		changed = true
	}

	var d models.Decision
	switch {
	case operator:
		d = models.Allow(models.ReasonOperator)
	case acc.IsPremium:
		d = models.Allow(models.ReasonPremium)
		d.PremiumUntil = acc.PremiumUntil
	case acc.RequestsToday >= limit:
		d = models.Deny(models.ReasonQuotaExceeded)
	default:
		acc.RequestsToday++
		changed = true
		d = models.Allow(models.ReasonFreeQuota)
	}
	d.RequestsToday = acc.RequestsToday
	d.Limit = limit
	return d, changed
}

// Status возвращает состояние квоты пользователя на текущий момент без его изменения.
func (e *Engine) Status(ctx context.Context, externalID int64) (*models.Account, error) {
	const op = "quota.Status"

	acc, err := e.store.Load(ctx, externalID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrStorageUnavailable, err)
	}

	now := e.now()
	if today := models.Date(now, e.loc); acc.LastRequestDate.Before(today) {
		acc.RequestsToday = 0
		acc.LastRequestDate = today
	}
	if !acc.PremiumActive(now) {
		acc.IsPremium = false
		acc.PremiumUntil = nil
	}
	return acc, nil
}

// ResetOne обнуляет дневной счётчик пользователя.
func (e *Engine) ResetOne(ctx context.Context, externalID int64) (*models.Account, error) {
	const op = "quota.ResetOne"

	today := e.Today()
	acc, err := e.store.UpdateAccount(ctx, externalID, func(acc *models.Account) (bool, error) {
		acc.RequestsToday = 0
		acc.LastRequestDate = today
		return true, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("quota reset", sl.User(externalID))
	return acc, nil
}

// ResetAll обнуляет дневные счётчики всех пользователей одним массовым обновлением
// и снимает истёкший премиум. Возвращает количество затронутых учётных записей.
func (e *Engine) ResetAll(ctx context.Context) (int64, error) {
	const op = "quota.ResetAll"

	now := e.now()
	n, err := e.store.ResetAllQuotas(ctx, models.Date(now, e.loc), now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("all quotas reset", slog.Int64("accounts", n))
	return n, nil
}

func (e *Engine) observe(d models.Decision) {
	if e.recorder != nil {
		e.recorder.ObserveDecision(d)
	}
}
