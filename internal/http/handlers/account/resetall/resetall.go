// Package resetall обнуляет дневные счётчики всех пользователей.
package resetall

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/sergeycommit/ai-tg-bot/internal/http/middlewarectx"
	"github.com/sergeycommit/ai-tg-bot/internal/http/response"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
)

// Service описывает массовый сброс квот.
type Service interface {
	ResetAll(ctx context.Context) (int64, error)
}

// Handler обработчик POST /accounts/reset.
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
	const op = "handlers.account.resetall"
	subject, _ := r.Context().Value(middlewarectx.Subject).(string)
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("subject", subject),
	)

	n, err := h.service.ResetAll(r.Context())
	if err != nil {
		log.Error("failed to reset all quotas", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reset quotas"))
		return
	}

	log.Info("all quotas reset via api", slog.Int64("accounts", n))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"accounts": n,
	}))
}
