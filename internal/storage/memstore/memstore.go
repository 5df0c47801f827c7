// Package memstore реализует хранилище учётных записей в памяти процесса.
// Используется для локального запуска (STORAGE_DRIVER=memory) и в тестах.
// Данные не переживают перезапуск.
package memstore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

type entry struct {
	mu  sync.Mutex
	acc models.Account
}

// Store потокобезопасное хранилище. Чтение-изменение-запись одной учётной
// записи сериализуется её собственным мьютексом, поэтому операции над
// разными учётными записями не блокируют друг друга.
type Store struct {
	mu       sync.RWMutex
	accounts map[int64]*entry
	messages map[int64][]models.Message
	payments map[string]models.Payment
	order    []int64
	nextID   int64
	nextMsg  int64
	now      func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts: make(map[int64]*entry),
		messages: make(map[int64][]models.Message),
		payments: make(map[string]models.Payment),
		now:      time.Now,
	}
}

func (s *Store) get(externalID int64) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[externalID]
	return e, ok
}

// GetOrCreate возвращает существующую учётную запись или создаёт новую
// с нулевой квотой и датой today.
func (s *Store) GetOrCreate(ctx context.Context, externalID int64, profile models.Profile, today time.Time) (*models.Account, error) {
	const op = "memstore.GetOrCreate"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if e, ok := s.get(externalID); ok {
		return e.snapshot(), nil
	}

	s.mu.Lock()
	e, ok := s.accounts[externalID]
	if !ok {
		s.nextID++
		e = &entry{acc: models.Account{
			ID:              s.nextID,
			ExternalID:      externalID,
			Profile:         profile,
			LastRequestDate: models.CalendarDate(today),
		}}
		s.accounts[externalID] = e
		s.order = append(s.order, externalID)
	}
	s.mu.Unlock()

	return e.snapshot(), nil
}

// Load возвращает копию учётной записи или models.ErrAccountNotFound.
func (s *Store) Load(ctx context.Context, externalID int64) (*models.Account, error) {
	const op = "memstore.Load"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e, ok := s.get(externalID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return e.snapshot(), nil
}

// Save сохраняет полное состояние учётной записи.
func (s *Store) Save(ctx context.Context, acc *models.Account) error {
	const op = "memstore.Save"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e, ok := s.get(acc.ExternalID)
	if !ok {
		return models.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store(acc)
	return nil
}

// UpdateAccount применяет fn к копии учётной записи под её мьютексом и
// сохраняет результат, только если fn сообщила об изменении и не вернула ошибку.
// Отменённый до сохранения контекст оставляет запись нетронутой.
func (s *Store) UpdateAccount(ctx context.Context, externalID int64, fn func(acc *models.Account) (bool, error)) (*models.Account, error) {
	const op = "memstore.UpdateAccount"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e, ok := s.get(externalID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acc := e.copyLocked()
	changed, err := fn(acc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if changed {
		e.store(acc)
	}
	return e.copyLocked(), nil
}

// ApplyPayment записывает платёж и применяет fn атомарно по отношению
// к другим изменениям той же учётной записи. Повторный ChargeID игнорируется.
func (s *Store) ApplyPayment(ctx context.Context, payment models.Payment, fn func(acc *models.Account) error) (*models.Account, bool, error) {
	const op = "memstore.ApplyPayment"
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	e, ok := s.get(payment.ExternalID)
	if !ok {
		return nil, false, models.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s.mu.RLock()
	_, dup := s.payments[payment.ChargeID]
	s.mu.RUnlock()
	if dup {
		return e.copyLocked(), false, nil
	}

	acc := e.copyLocked()
	if err := fn(acc); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if _, dup := s.payments[payment.ChargeID]; dup {
		s.mu.Unlock()
		return e.copyLocked(), false, nil
	}
	payment.ID = int64(len(s.payments) + 1)
	payment.CreatedAt = s.now()
	s.payments[payment.ChargeID] = payment
	s.mu.Unlock()

	e.store(acc)
	return e.copyLocked(), true, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Store) ListPayments(_ context.Context, externalID int64) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Payment
	for _, p := range s.payments {
		if p.ExternalID == externalID {
			result = append(result, &p)
		}
	}
	slices.SortFunc(result, func(a, b *models.Payment) int {
		return int(b.ID - a.ID)
	})
	return result, nil
}

// SaveMessage добавляет сообщение в историю пользователя.
func (s *Store) SaveMessage(ctx context.Context, externalID int64, role, content string) error {
	const op = "memstore.SaveMessage"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.accounts[externalID]
	if !ok {
		return models.ErrAccountNotFound
	}
	s.nextMsg++
	s.messages[externalID] = append(s.messages[externalID], models.Message{
		ID:        s.nextMsg,
		AccountID: e.acc.ID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
	return nil
}

// RecentMessages возвращает не более limit последних сообщений в хронологическом порядке.
func (s *Store) RecentMessages(_ context.Context, externalID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[externalID]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return slices.Clone(history), nil
}

// DeleteMessages удаляет историю пользователя.
func (s *Store) DeleteMessages(_ context.Context, externalID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.messages[externalID]))
	delete(s.messages, externalID)
	return n, nil
}

// Accounts обходит учётные записи в порядке создания. Копия каждой записи
// берётся в момент выдачи, список идентификаторов читается порциями по batch.
func (s *Store) Accounts(ctx context.Context, batch int) iter.Seq2[models.Account, error] {
	if batch <= 0 {
		batch = 500
	}
	return func(yield func(models.Account, error) bool) {
		for offset := 0; ; offset += batch {
			if err := ctx.Err(); err != nil {
				yield(models.Account{}, fmt.Errorf("memstore.Accounts: %w", err))
				return
			}

			s.mu.RLock()
			end := min(offset+batch, len(s.order))
			var page []*entry
			if offset < end {
				page = make([]*entry, 0, end-offset)
				for _, id := range s.order[offset:end] {
					page = append(page, s.accounts[id])
				}
			}
			s.mu.RUnlock()

			for _, e := range page {
				if !yield(*e.snapshot(), nil) {
					return
				}
			}
			if len(page) < batch {
				return
			}
		}
	}
}

// PremiumExpiring возвращает записи с премиумом, истекающим в [from, to),
// упорядоченные по моменту окончания.
func (s *Store) PremiumExpiring(ctx context.Context, from, to time.Time) ([]models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memstore.PremiumExpiring: %w", err)
	}

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.accounts[id])
	}
	s.mu.RUnlock()

	var res []models.Account
	for _, e := range entries {
		acc := e.snapshot()
		if !acc.IsPremium || acc.PremiumUntil == nil {
			continue
		}
		if acc.PremiumUntil.Before(from) || !acc.PremiumUntil.Before(to) {
			continue
		}
		res = append(res, *acc)
	}
	slices.SortStableFunc(res, func(a, b models.Account) int {
		return a.PremiumUntil.Compare(*b.PremiumUntil)
	})
	return res, nil
}

// ResetAllQuotas обнуляет счётчики всех учётных записей и снимает истёкший премиум.
// Каждая запись блокируется только на время её собственного сброса.
func (s *Store) ResetAllQuotas(ctx context.Context, today, now time.Time) (int64, error) {
	const op = "memstore.ResetAllQuotas"
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.accounts))
	for _, e := range s.accounts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		e.acc.RequestsToday = 0
		e.acc.LastRequestDate = models.CalendarDate(today)
		if !e.acc.PremiumActive(now) {
			e.acc.IsPremium = false
			e.acc.PremiumUntil = nil
		}
		e.mu.Unlock()
	}
	return int64(len(entries)), nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

func (e *entry) snapshot() *models.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

func (e *entry) copyLocked() *models.Account {
	acc := e.acc
	if e.acc.PremiumUntil != nil {
		until := *e.acc.PremiumUntil
		acc.PremiumUntil = &until
	}
	return &acc
}

func (e *entry) store(acc *models.Account) {
	id := e.acc.ID
	e.acc = *acc
	e.acc.ID = id
	e.acc.LastRequestDate = models.CalendarDate(acc.LastRequestDate)
	if acc.PremiumUntil != nil {
		until := *acc.PremiumUntil
		e.acc.PremiumUntil = &until
	}
}
