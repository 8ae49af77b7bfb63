// Package create реализует HTTP-обработчик добавления иждивенца.
// Ежемесячный взнос считает сервер; присланные значения взноса игнорируются.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coverplan/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coverplan/internal/http/response"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
	"github.com/magabrotheeeer/coverplan/internal/services/cover"
)

// Handler управляет HTTP-запросами на добавление иждивенца.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики расширенного покрытия.
type Service interface {
	Create(ctx context.Context, userUID string, req models.DummyCover) (*models.ExtendedCover, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить иждивенца
// @Description Добавляет застрахованного иждивенца с расчетом взноса на сервере.
// @Tags Covers
// @Accept  json
// @Produce  json
// @Param request body models.DummyCover true "Данные иждивенца"
// @Success 200 {object} map[string]any "Созданная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или недопустимая сумма"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /covers [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cover.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCover
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	uid, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || uid == "" {
		log.Error("user uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	record, err := h.service.Create(r.Context(), uid, req)
	if err != nil {
		if errors.Is(err, cover.ErrAmountNotAllowed) {
			log.Info("cover amount not allowed for age")
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("cover amount is not available for this age"))
			return
		}
		log.Error("failed to create cover", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create cover"))
		return
	}

	log.Info("cover created", slog.Int("id", record.ID))
	render.JSON(w, r, response.OKWithData(record))
}
