// Package metrics регистрирует метрики prometheus бота и административного API.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

const namespace = "aitgbot"

// Metrics набор счётчиков домена. Реализует интерфейсы Recorder
// сервисов quota, activation и broadcast.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	Activations        *prometheus.CounterVec
	BroadcastSends     *prometheus.CounterVec
	MigrationColumns   *prometheus.CounterVec
	MigrationRuns      *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New регистрирует метрики в reg. При nil используется глобальный регистратор.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_decisions_total",
				Help:      "Admission decisions by outcome and reason",
			},
			[]string{"allowed", "reason"},
		),
		Activations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "premium_activations_total",
				Help:      "Premium activations after payment by plan and status",
			},
			[]string{"plan", "status"},
		),
		BroadcastSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_sends_total",
				Help:      "Broadcast deliveries by status",
			},
			[]string{"status"},
		),
		MigrationColumns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migration_columns_total",
				Help:      "Columns handled by schema evolution by status",
			},
			[]string{"status"},
		),
		MigrationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migration_runs_total",
				Help:      "Schema evolution runs by status",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request latency distribution",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveDecision учитывает решение о допуске запроса.
func (m *Metrics) ObserveDecision(d models.Decision) {
	m.Decisions.WithLabelValues(strconv.FormatBool(d.Allowed), string(d.Reason)).Inc()
}

// ObserveActivation учитывает активацию премиума после оплаты.
func (m *Metrics) ObserveActivation(planID string, ok bool) {
	m.Activations.WithLabelValues(planID, status(ok)).Inc()
}

// ObserveBroadcastSend учитывает одну доставку рассылки.
func (m *Metrics) ObserveBroadcastSend(ok bool) {
	m.BroadcastSends.WithLabelValues(status(ok)).Inc()
}

// ObserveMigration учитывает результат прогона эволюции схемы.
func (m *Metrics) ObserveMigration(added, failed int, err error) {
	m.MigrationColumns.WithLabelValues("added").Add(float64(added))
	m.MigrationColumns.WithLabelValues("failed").Add(float64(failed))
	m.MigrationRuns.WithLabelValues(status(err == nil)).Inc()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
