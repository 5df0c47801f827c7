// Package broadcast рассылает сообщение всем пользователям бота.
package broadcast

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

const pageSize = 500

// AccountSource ленивый обход всех учётных записей.
type AccountSource interface {
	Accounts(ctx context.Context, batch int) iter.Seq2[models.Account, error]
}

// Delivery доставляет одно уведомление.
type Delivery interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// Notifier канал уведомлений оператора.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// Recorder учитывает результаты доставки.
type Recorder interface {
	ObserveBroadcastSend(ok bool)
}

// Report итог рассылки.
type Report struct {
	JobID    string        `json:"job_id"`
	Total    int           `json:"total"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func (r Report) String() string {
	return fmt.Sprintf("📣 Broadcast %s finished\nTotal: %d\nSent: %d\nFailed: %d\nDuration: %s",
		r.JobID, r.Total, r.Sent, r.Failed, r.Duration.Round(time.Second))
}

// Service сервис рассылок.
type Service struct {
	accounts AccountSource
	delivery Delivery
	limiter  *rate.Limiter
	notifier Notifier
	recorder Recorder
	log      *slog.Logger

	wg sync.WaitGroup
}

// New создаёт Service. limiter ограничивает темп доставки, nil отключает ограничение.
func New(accounts AccountSource, delivery Delivery, limiter *rate.Limiter, notifier Notifier, recorder Recorder, log *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		delivery: delivery,
		limiter:  limiter,
		notifier: notifier,
		recorder: recorder,
		log:      log,
	}
}

// Run рассылает text всем пользователям и возвращает отчёт. Ошибка доставки
// одному пользователю учитывается в отчёте и не прерывает рассылку.
// Ошибка обхода хранилища или отмена ctx прерывают рассылку.
func (s *Service) Run(ctx context.Context, jobID, text string) (Report, error) {
	const op = "broadcast.Run"
	log := s.log.With(sl.Op(op), slog.String("job_id", jobID))

	started := time.Now()
	report := Report{JobID: jobID}

	for acc, err := range s.accounts.Accounts(ctx, pageSize) {
		if err != nil {
			report.Duration = time.Since(started)
			return report, fmt.Errorf("%s: %w", op, err)
		}
		report.Total++

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				report.Duration = time.Since(started)
				return report, fmt.Errorf("%s: %w", op, err)
			}
		}

		err := s.delivery.Deliver(ctx, models.Notification{ChatID: acc.ExternalID, Text: text, JobID: jobID})
		if err != nil {
			report.Failed++
			log.Warn("broadcast delivery failed", sl.User(acc.ExternalID), sl.Err(err))
		} else {
			report.Sent++
		}
		if s.recorder != nil {
			s.recorder.ObserveBroadcastSend(err == nil)
		}
	}

	report.Duration = time.Since(started)
	log.Info("broadcast finished",
		slog.Int("total", report.Total),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed))
	return report, nil
}

// Start запускает рассылку в фоне и сразу возвращает идентификатор задачи.
// По завершении отчёт отправляется оператору.
func (s *Service) Start(ctx context.Context, text string) string {
	jobID := uuid.New().String()
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := s.Run(ctx, jobID, text)
		if err != nil {
			s.log.Error("broadcast aborted", slog.String("job_id", jobID), sl.Err(err))
			s.notifier.NotifyOperator(ctx, fmt.Sprintf("❌ Broadcast %s aborted after %d users: %s",
				jobID, report.Total, err))
			return
		}
		s.notifier.NotifyOperator(ctx, report.String())
	}()
	return jobID
}

// Wait ждёт завершения запущенных рассылок.
func (s *Service) Wait() {
	s.wg.Wait()
}
