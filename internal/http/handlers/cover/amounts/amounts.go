// Package amounts реализует HTTP-обработчик допустимых страховых сумм.
// Список зависит только от возраста иждивенца.
package amounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coverplan/internal/http/response"
)

// Handler управляет HTTP-запросами допустимых страховых сумм.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-правила страховых сумм.
type Service interface {
	Amounts(age int) []float64
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Допустимые страховые суммы
// @Description Возвращает список сумм, доступных для возраста иждивенца.
// @Tags Covers
// @Produce  json
// @Param age query int false "Возраст иждивенца"
// @Success 200 {object} map[string]any "Список сумм"
// @Security BearerAuth
// @Router /covers/amounts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cover.amounts"

	// Нечисловой или отсутствующий возраст трактуется консервативно: age=0.
	age, _ := strconv.Atoi(r.URL.Query().Get("age"))

	h.log.Info("cover amounts requested",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("age", age))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"age":     age,
		"amounts": h.service.Amounts(age),
	}))
}
