// Package update реализует HTTP-обработчик обновления записи иждивенца
// с пересчетом ежемесячного взноса на сервере.
package update

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

	"github.com/magabrotheeeer/coverplan/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coverplan/internal/http/response"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
	"github.com/magabrotheeeer/coverplan/internal/services/cover"
)

// Handler управляет HTTP-запросами на обновление иждивенца.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс обновления записи иждивенца.
type Service interface {
	Update(ctx context.Context, userUID string, id int, req models.DummyCover) (*models.ExtendedCover, error)
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
// @Summary Обновить иждивенца
// @Description Перезаписывает запись иждивенца с пересчетом взноса.
// @Tags Covers
// @Accept  json
// @Produce  json
// @Param id path int true "ID записи"
// @Param request body models.DummyCover true "Новые данные иждивенца"
// @Success 200 {object} map[string]any "Обновленная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или недопустимая сумма"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /covers/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cover.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid cover id", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid cover id"))
		return
	}

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

	record, err := h.service.Update(r.Context(), uid, id, req)
	if err != nil {
		switch {
		case errors.Is(err, cover.ErrCoverNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("cover record not found"))
		case errors.Is(err, cover.ErrAmountNotAllowed):
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("cover amount is not available for this age"))
		default:
			log.Error("failed to update cover", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update cover"))
		}
		return
	}

	log.Info("cover updated", slog.Int("id", record.ID))
	render.JSON(w, r, response.OKWithData(record))
}
