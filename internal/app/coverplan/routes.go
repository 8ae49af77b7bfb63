// Package coverplan предоставляет маршруты основного приложения.
package coverplan

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/coverplan/internal/config"
	adminstats "github.com/magabrotheeeer/coverplan/internal/http/handlers/admin/stats"
	adminusers "github.com/magabrotheeeer/coverplan/internal/http/handlers/admin/users"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/resetconfirm"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/resetrequest"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/auth/verifyemail"
	coveramounts "github.com/magabrotheeeer/coverplan/internal/http/handlers/cover/amounts"
	covercreate "github.com/magabrotheeeer/coverplan/internal/http/handlers/cover/create"
	coverlist "github.com/magabrotheeeer/coverplan/internal/http/handlers/cover/list"
	coverremove "github.com/magabrotheeeer/coverplan/internal/http/handlers/cover/remove"
	coverupdate "github.com/magabrotheeeer/coverplan/internal/http/handlers/cover/update"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/health"
	invoicelist "github.com/magabrotheeeer/coverplan/internal/http/handlers/invoice/list"
	planlist "github.com/magabrotheeeer/coverplan/internal/http/handlers/plan/list"
	subcancel "github.com/magabrotheeeer/coverplan/internal/http/handlers/subscription/cancel"
	subcreate "github.com/magabrotheeeer/coverplan/internal/http/handlers/subscription/create"
	subcurrent "github.com/magabrotheeeer/coverplan/internal/http/handlers/subscription/current"
	subupdate "github.com/magabrotheeeer/coverplan/internal/http/handlers/subscription/update"
	"github.com/magabrotheeeer/coverplan/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/coverplan/internal/http/middlewarectx"
	libjwt "github.com/magabrotheeeer/coverplan/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/coverplan/internal/services/auth"
	coverservice "github.com/magabrotheeeer/coverplan/internal/services/cover"
	ledgerservice "github.com/magabrotheeeer/coverplan/internal/services/ledger"
	planservice "github.com/magabrotheeeer/coverplan/internal/services/plan"
	subservice "github.com/magabrotheeeer/coverplan/internal/services/subscription"
	"github.com/magabrotheeeer/coverplan/internal/storage/repository"
)

// Services — собранные сервисы приложения для регистрации маршрутов.
type Services struct {
	Auth         *authservice.Service
	Plan         *planservice.Service
	Subscription *subservice.Service
	Ledger       *ledgerservice.Service
	Cover        *coverservice.Service
	Tokens       libjwt.Maker
	Storage      *repository.Storage
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	deps *Services, signatureHeader string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger, deps.Storage).ServeHTTP)
		r.Get("/plans", planlist.New(logger, deps.Plan).ServeHTTP)

		r.Group(func(r chi.Router) {
			// Против перебора паролей и токенов.
			r.Use(middlewarectx.RateLimit(rate.Limit(5), 10))
			r.Post("/auth/register", register.New(logger, deps.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, deps.Auth, cfg.TokenTTL).ServeHTTP)
			r.Post("/auth/verify-email", verifyemail.New(logger, deps.Auth).ServeHTTP)
			resetReq := resetrequest.New(logger, deps.Auth)
			r.Post("/auth/request-reset", resetReq.ServeHTTP)
			r.Post("/auth/request-password-reset", resetReq.ServeHTTP)
			r.Post("/auth/reset-password", resetconfirm.New(logger, deps.Auth).ServeHTTP)
		})
		r.Post("/auth/logout", logout.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			meHandler := me.New(logger, deps.Auth)
			r.Get("/auth/me", meHandler.ServeHTTP)
			r.Get("/auth/user", meHandler.ServeHTTP)

			// Жизненный цикл подписки доступен и по REST-глаголам,
			// и по явным POST-путям.
			subCreate := subcreate.New(logger, deps.Subscription)
			subUpdate := subupdate.New(logger, deps.Subscription)
			subCancel := subcancel.New(logger, deps.Subscription)
			r.Post("/subscriptions", subCreate.ServeHTTP)
			r.Post("/subscriptions/create", subCreate.ServeHTTP)
			r.Get("/subscriptions/current", subcurrent.New(logger, deps.Subscription).ServeHTTP)
			r.Put("/subscriptions", subUpdate.ServeHTTP)
			r.Post("/subscriptions/update", subUpdate.ServeHTTP)
			r.Delete("/subscriptions", subCancel.ServeHTTP)
			r.Post("/subscriptions/cancel", subCancel.ServeHTTP)

			r.Get("/invoices", invoicelist.New(logger, deps.Ledger).ServeHTTP)

			r.Post("/covers", covercreate.New(logger, deps.Cover).ServeHTTP)
			r.Get("/covers", coverlist.New(logger, deps.Cover).ServeHTTP)
			r.Get("/covers/amounts", coveramounts.New(logger, deps.Cover).ServeHTTP)
			r.Put("/covers/{id}", coverupdate.New(logger, deps.Cover).ServeHTTP)
			r.Delete("/covers/{id}", coverremove.New(logger, deps.Cover).ServeHTTP)

			// Админская зона
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/admin/users", adminusers.New(logger, deps.Ledger).ServeHTTP)
				r.Get("/admin/stats", adminstats.New(logger, deps.Ledger).ServeHTTP)
			})
		})

		// Webhook endpoint (без аутентификации: подпись проверяет адаптер)
		r.Post("/webhooks/"+cfg.GatewayProvider,
			webhook.New(logger, deps.Subscription, signatureHeader).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
