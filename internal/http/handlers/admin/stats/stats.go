// Package stats реализует HTTP-обработчик агрегатов админской панели.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coverplan/internal/http/response"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Handler управляет HTTP-запросами агрегатов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс сбора агрегатов.
type Service interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Агрегаты админской панели
// @Description Возвращает всего пользователей, активных подписчиков и выручку.
// @Tags Admin
// @Produce  json
// @Success 200 {object} map[string]any "Агрегаты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нужна админская роль"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	result, err := h.service.Stats(r.Context())
	if err != nil {
		log.Error("failed to collect stats", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not collect stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(result))
}
