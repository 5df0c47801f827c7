// Package access объединяет регистрацию пользователей, проверку подписки
// на канал, допуск запросов и историю диалога для транспортного слоя.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// Store методы хранилища, используемые фасадом.
type Store interface {
	GetOrCreate(ctx context.Context, externalID int64, profile models.Profile, today time.Time) (*models.Account, error)
	SaveMessage(ctx context.Context, externalID int64, role, content string) error
	RecentMessages(ctx context.Context, externalID int64, limit int) ([]models.Message, error)
	DeleteMessages(ctx context.Context, externalID int64) (int64, error)
}

// Admitter движок квот.
type Admitter interface {
	Admit(ctx context.Context, externalID int64) (models.Decision, error)
	Status(ctx context.Context, externalID int64) (*models.Account, error)
	Today() time.Time
	Limit() int
}

// Activator активирует премиум после оплаты.
type Activator interface {
	ConfirmPayment(ctx context.Context, payment models.Payment) (*models.Account, error)
}

// MembershipChecker проверяет подписку пользователя на канал.
type MembershipChecker interface {
	IsChannelMember(ctx context.Context, userID int64) (bool, error)
}

// MembershipCache запоминает подтверждённые подписки.
type MembershipCache interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
	RememberMember(ctx context.Context, userID int64, ttl time.Duration) error
	ForgetMember(ctx context.Context, userID int64) error
}

// Options необязательные зависимости фасада.
type Options struct {
	HistoryLimit int
	Membership   MembershipChecker
	Cache        MembershipCache
	CacheTTL     time.Duration
}

// StatusView состояние пользователя для показа в чате и в API.
type StatusView struct {
	ExternalID    int64      `json:"user_id"`
	Premium       bool       `json:"premium"`
	PremiumUntil  *time.Time `json:"premium_until,omitempty"`
	RequestsToday int        `json:"requests_today"`
	Limit         int        `json:"limit"`
	Remaining     int        `json:"remaining"`
}

// Service фасад доступа.
type Service struct {
	store        Store
	quota        Admitter
	activation   Activator
	membership   MembershipChecker
	cache        MembershipCache
	cacheTTL     time.Duration
	historyLimit int
	log          *slog.Logger
}

// New создаёт Service.
func New(store Store, quota Admitter, activation Activator, opts Options, log *slog.Logger) *Service {
	return &Service{
		store:        store,
		quota:        quota,
		activation:   activation,
		membership:   opts.Membership,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		historyLimit: opts.HistoryLimit,
		log:          log,
	}
}

// OnContact регистрирует пользователя при первом обращении.
func (s *Service) OnContact(ctx context.Context, externalID int64, profile models.Profile) (*models.Account, error) {
	const op = "access.OnContact"

	acc, err := s.store.GetOrCreate(ctx, externalID, profile, s.quota.Today())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// OnRequest принимает решение о допуске запроса.
func (s *Service) OnRequest(ctx context.Context, externalID int64) (models.Decision, error) {
	return s.quota.Admit(ctx, externalID)
}

// OnPaymentConfirmed активирует оплаченный план.
func (s *Service) OnPaymentConfirmed(ctx context.Context, payment models.Payment) (*models.Account, error) {
	return s.activation.ConfirmPayment(ctx, payment)
}

// CheckMembership проверяет подписку на канал. При fresh кеш не читается,
// а отписка сбрасывает запомненный положительный ответ.
// Ошибка кеша не мешает проверке через мессенджер.
func (s *Service) CheckMembership(ctx context.Context, externalID int64, fresh bool) (bool, error) {
	const op = "access.CheckMembership"

	if s.membership == nil {
		return true, nil
	}

	if s.cache != nil && !fresh {
		member, err := s.cache.IsMember(ctx, externalID)
		if err != nil {
			s.log.Warn("membership cache unavailable", sl.User(externalID), sl.Err(err))
		} else if member {
			return true, nil
		}
	}

	member, err := s.membership.IsChannelMember(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache == nil {
		return member, nil
	}
	switch {
	case member:
		if err := s.cache.RememberMember(ctx, externalID, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache membership", sl.User(externalID), sl.Err(err))
		}
	case fresh:
		if err := s.cache.ForgetMember(ctx, externalID); err != nil {
			s.log.Warn("failed to forget membership", sl.User(externalID), sl.Err(err))
		}
	}
	return member, nil
}

// History возвращает последние сообщения диалога в хронологическом порядке.
func (s *Service) History(ctx context.Context, externalID int64) ([]models.Message, error) {
	const op = "access.History"

	if s.historyLimit <= 0 {
		return nil, nil
	}
	msgs, err := s.store.RecentMessages(ctx, externalID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

// Remember сохраняет реплику пользователя и ответ модели.
func (s *Service) Remember(ctx context.Context, externalID int64, question, answer string) error {
	const op = "access.Remember"

	if err := s.store.SaveMessage(ctx, externalID, models.RoleUser, question); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.SaveMessage(ctx, externalID, models.RoleAssistant, answer); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearHistory удаляет историю диалога.
func (s *Service) ClearHistory(ctx context.Context, externalID int64) (int64, error) {
	const op = "access.ClearHistory"

	n, err := s.store.DeleteMessages(ctx, externalID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("history cleared", sl.User(externalID), slog.Int64("messages", n))
	return n, nil
}

// Status возвращает состояние квоты и премиума без расхода квоты.
func (s *Service) Status(ctx context.Context, externalID int64) (StatusView, error) {
	const op = "access.Status"

	acc, err := s.quota.Status(ctx, externalID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return StatusView{}, err
		}
		return StatusView{}, fmt.Errorf("%s: %w", op, err)
	}

	usage := models.Decision{RequestsToday: acc.RequestsToday, Limit: s.quota.Limit()}
	return StatusView{
		ExternalID:    acc.ExternalID,
		Premium:       acc.IsPremium,
		PremiumUntil:  acc.PremiumUntil,
		RequestsToday: usage.RequestsToday,
		Limit:         usage.Limit,
		Remaining:     usage.Remaining(),
	}, nil
}
