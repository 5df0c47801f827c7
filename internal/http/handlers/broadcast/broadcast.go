// Package broadcast запускает рассылку всем пользователям.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/sergeycommit/ai-tg-bot/internal/http/middlewarectx"
	"github.com/sergeycommit/ai-tg-bot/internal/http/response"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/services/admin"
)

// Request тело запроса.
type Request struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// Service описывает запуск рассылки.
type Service interface {
	Broadcast(ctx context.Context, text string) (string, error)
}

// Handler обработчик POST /broadcast.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast"
	subject, _ := r.Context().Value(middlewarectx.Subject).(string)
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("subject", subject),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	// Рассылка идёт в фоне и не должна обрываться вместе с запросом.
	jobID, err := h.service.Broadcast(context.WithoutCancel(r.Context()), req.Text)
	switch {
	case errors.Is(err, admin.ErrEmptyBroadcast):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("broadcast text is empty"))
		return
	case err != nil:
		log.Error("failed to start broadcast", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start broadcast"))
		return
	}

	log.Info("broadcast started via api", slog.String("job_id", jobID))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"job_id": jobID,
	}))
}
