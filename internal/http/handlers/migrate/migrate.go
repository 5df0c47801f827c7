// Package migrate запускает эволюцию схемы по запросу администратора.
package migrate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/sergeycommit/ai-tg-bot/internal/http/middlewarectx"
	"github.com/sergeycommit/ai-tg-bot/internal/http/response"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/services/admin"
)

// Service описывает запуск миграции.
type Service interface {
	Migrate(ctx context.Context) (migrations.Report, error)
}

// Failure неудавшийся шаг в ответе.
type Failure struct {
	Column   string `json:"column"`
	Critical bool   `json:"critical"`
	Error    string `json:"error"`
}

// Result итог прогона в ответе.
type Result struct {
	Added  []string  `json:"added"`
	Failed []Failure `json:"failed"`
}

// Handler обработчик POST /migrate.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.migrate"
	subject, _ := r.Context().Value(middlewarectx.Subject).(string)
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("subject", subject),
	)

	report, err := h.service.Migrate(r.Context())
	switch {
	case errors.Is(err, admin.ErrMigrationInProgress):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("migration already in progress"))
		return
	case err != nil:
		log.Error("migration failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("migration failed"))
		return
	}

	render.JSON(w, r, response.OKWithData(toResult(report)))
}

func toResult(report migrations.Report) Result {
	res := Result{
		Added:  append([]string{}, report.Added...),
		Failed: make([]Failure, 0, len(report.Failed)),
	}
	for _, f := range report.Failed {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		res.Failed = append(res.Failed, Failure{
			Column:   f.Table + "." + f.Column,
			Critical: f.Critical,
			Error:    msg,
		})
	}
	return res
}
