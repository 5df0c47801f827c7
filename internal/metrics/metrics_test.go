package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDecision(models.Allow(models.ReasonFreeQuota))
	m.ObserveDecision(models.Allow(models.ReasonFreeQuota))
	m.ObserveDecision(models.Deny(models.ReasonQuotaExceeded))
	m.ObserveActivation("month", true)
	m.ObserveActivation("month", false)
	m.ObserveBroadcastSend(true)
	m.ObserveMigration(3, 1, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("true", string(models.ReasonFreeQuota))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("false", string(models.ReasonQuotaExceeded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues("month", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues("month", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastSends.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MigrationColumns.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MigrationRuns.WithLabelValues("failed")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/accounts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/accounts/{id}", "404")))
}
