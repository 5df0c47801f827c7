// Package premium выдаёт премиум вручную, например после неудачной
// активации оплаченного платежа.
package premium

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/sergeycommit/ai-tg-bot/internal/http/middlewarectx"
	"github.com/sergeycommit/ai-tg-bot/internal/http/response"
	"github.com/sergeycommit/ai-tg-bot/internal/lib/sl"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/services/admin"
)

// Request тело запроса. Указывается план или число дней.
type Request struct {
	PlanID string `json:"plan_id" validate:"omitempty,alphanum"`
	Days   int    `json:"days" validate:"gte=0,max=3650"`
}

// Service описывает выдачу премиума.
type Service interface {
	Grant(ctx context.Context, externalID int64, planID string, days int) (*models.Account, error)
}

// Handler обработчик POST /accounts/{id}/premium.
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
	const op = "handlers.account.premium"
	subject, _ := r.Context().Value(middlewarectx.Subject).(string)
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("subject", subject),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Warn("failed to decode id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid account id"))
		return
	}

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

	acc, err := h.service.Grant(r.Context(), id, req.PlanID, req.Days)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	case errors.Is(err, models.ErrUnknownPlan):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown plan"))
		return
	case errors.Is(err, admin.ErrInvalidGrant):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("plan_id or days is required"))
		return
	case err != nil:
		log.Error("failed to grant premium", sl.User(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not grant premium"))
		return
	}

	log.Info("premium granted via api", sl.User(id), slog.String("plan", req.PlanID), slog.Int("days", req.Days))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"account": acc,
	}))
}
