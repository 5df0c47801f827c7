// Package read возвращает состояние учётной записи пользователя и его платежи.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/sergeycommit/ai-tg-bot/internal/http/response"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// Service описывает чтение учётной записи.
type Service interface {
	Account(ctx context.Context, externalID int64) (*models.Account, error)
	Payments(ctx context.Context, externalID int64) ([]*models.Payment, error)
}

// Handler обработчик GET /accounts/{id}.
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
	const op = "handlers.account.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Warn("failed to decode id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid account id"))
		return
	}

	acc, err := h.service.Account(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	case err != nil:
		log.Error("failed to read account", sl.User(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	payments, err := h.service.Payments(r.Context(), id)
	if err != nil {
		log.Error("failed to read payments", sl.User(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read payments"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"account":  acc,
		"payments": payments,
	}))
}
