// Package scheduler периодически напоминает пользователям об окончании премиума.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

const dateLayout = "02.01.2006"

// ExpiringSource ищет учётные записи с истекающим премиумом.
type ExpiringSource interface {
	PremiumExpiring(ctx context.Context, from, to time.Time) ([]models.Account, error)
}

// Delivery доставляет уведомление пользователю.
type Delivery interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// Marker отмечает отправленное напоминание. MarkOnce возвращает true,
// только если ключ ещё не был отмечен. Invalidate снимает отметку.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Options настройки напоминаний.
type Options struct {
	// Lead за сколько до окончания премиума отправляется напоминание.
	Lead     time.Duration
	Interval time.Duration
	Marker   Marker
	Now      func() time.Time
}

// ReminderService рассылает напоминания об окончании премиума.
type ReminderService struct {
	source   ExpiringSource
	delivery Delivery
	marker   Marker
	lead     time.Duration
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewReminderService создаёт ReminderService. Без Marker отметки
// хранятся в памяти процесса.
func NewReminderService(source ExpiringSource, delivery Delivery, opts Options, log *slog.Logger) *ReminderService {
	s := &ReminderService{
		source:   source,
		delivery: delivery,
		marker:   opts.Marker,
		lead:     opts.Lead,
		interval: opts.Interval,
		now:      opts.Now,
		log:      log,
	}
	if s.lead <= 0 {
		s.lead = 24 * time.Hour
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.marker == nil {
		s.marker = newMemoryMarker()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run выполняет проверку сразу и затем каждые Interval до отмены ctx.
func (s *ReminderService) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ReminderService) runOnce(ctx context.Context) {
	if _, err := s.RemindAt(ctx, s.now()); err != nil {
		s.log.Error("failed to send premium reminders", sl.Err(err))
	}
}

// RemindAt отправляет напоминания всем, чей премиум заканчивается в
// промежутке [now, now+Lead). Каждому окончанию соответствует одно напоминание.
// Возвращает количество отправленных напоминаний.
func (s *ReminderService) RemindAt(ctx context.Context, now time.Time) (int, error) {
	const op = "scheduler.RemindAt"

	accounts, err := s.source.PremiumExpiring(ctx, now, now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(accounts) == 0 {
		s.log.Debug("no expiring premium found")
		return 0, nil
	}
	s.log.Info("found expiring premium", slog.Int("count", len(accounts)))

	sent := 0
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return sent, fmt.Errorf("%s: %w", op, err)
		}

		key := fmt.Sprintf("reminder:%d:%d", acc.ExternalID, acc.PremiumUntil.Unix())
		first, err := s.marker.MarkOnce(ctx, key, s.lead+s.interval)
		if err != nil {
			s.log.Warn("failed to mark reminder", sl.User(acc.ExternalID), sl.Err(err))
			continue
		}
		if !first {
			continue
		}

		err = s.delivery.Deliver(ctx, models.Notification{
			ChatID: acc.ExternalID,
			Text:   reminderText(*acc.PremiumUntil),
		})
		if err != nil {
			s.log.Warn("failed to deliver reminder", sl.User(acc.ExternalID), sl.Err(err))
			// без отметки следующий запуск повторит отправку
			if err := s.marker.Invalidate(ctx, key); err != nil {
				s.log.Warn("failed to release reminder mark", sl.User(acc.ExternalID), sl.Err(err))
			}
			continue
		}
		sent++
	}
	return sent, nil
}

func reminderText(until time.Time) string {
	return fmt.Sprintf("⏳ Your premium subscription expires on %s.\n"+
		"Use /premium to extend it.", until.UTC().Format(dateLayout))
}

type memoryMarker struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func newMemoryMarker() *memoryMarker {
	return &memoryMarker{marks: make(map[string]time.Time)}
}

func (m *memoryMarker) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, exp := range m.marks {
		if now.After(exp) {
			delete(m.marks, k)
		}
	}
	if _, ok := m.marks[key]; ok {
		return false, nil
	}
	m.marks[key] = now.Add(ttl)
	return true, nil
}

func (m *memoryMarker) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marks, key)
	return nil
}
