// Package webhook реализует HTTP-обработчик вебхуков платежного шлюза.
//
// Handler читает сырое тело запроса и передает его вместе с подписью машине
// состояний подписок. Проверка подписи — внутри адаптера шлюза; событие с
// неизвестной ссылкой молча игнорируется и отвечает 200, чтобы шлюз не
// повторял доставку бесконечно.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coverplan/internal/http/response"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
)

// Handler управляет HTTP-запросами вебхуков.
type Handler struct {
	log     *slog.Logger
	service Service
	// signatureHeader — заголовок с подписью; пустая строка означает,
	// что подпись вшита в тело (редирект-шлюз).
	signatureHeader string
}

// Service описывает интерфейс обработки события вебхука.
type Service interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// New создает новый Handler; signatureHeader — имя заголовка подписи шлюза.
func New(log *slog.Logger, service Service, signatureHeader string) *Handler {
	return &Handler{log: log, service: service, signatureHeader: signatureHeader}
}

// ServeHTTP godoc
// @Summary Вебхук платежного шлюза
// @Description Принимает server-to-server уведомление шлюза о платеже.
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Невалидная подпись или тело"
// @Router /webhooks/{gateway} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("could not read request body"))
		return
	}

	var signature string
	if h.signatureHeader != "" {
		signature = r.Header.Get(h.signatureHeader)
	}

	if err := h.service.HandleWebhook(r.Context(), body, signature); err != nil {
		log.Error("webhook rejected", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("webhook rejected"))
		return
	}

	log.Info("webhook processed")
	render.JSON(w, r, response.OK())
}
