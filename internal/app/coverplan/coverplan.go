// Package coverplan собирает и запускает основной API-процесс:
// хранилище, миграции, кеш, брокер уведомлений, активный платёжный шлюз
// и HTTP-сервер с graceful shutdown.
package coverplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/coverplan/internal/cache"
	"github.com/magabrotheeeer/coverplan/internal/config"
	"github.com/magabrotheeeer/coverplan/internal/gateway"
	"github.com/magabrotheeeer/coverplan/internal/gateway/adumo"
	"github.com/magabrotheeeer/coverplan/internal/gateway/stripegw"
	libjwt "github.com/magabrotheeeer/coverplan/internal/lib/jwt"
	"github.com/magabrotheeeer/coverplan/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/coverplan/internal/migrations"
	authservice "github.com/magabrotheeeer/coverplan/internal/services/auth"
	coverservice "github.com/magabrotheeeer/coverplan/internal/services/cover"
	ledgerservice "github.com/magabrotheeeer/coverplan/internal/services/ledger"
	"github.com/magabrotheeeer/coverplan/internal/services/notify"
	planservice "github.com/magabrotheeeer/coverplan/internal/services/plan"
	subservice "github.com/magabrotheeeer/coverplan/internal/services/subscription"
	"github.com/magabrotheeeer/coverplan/internal/storage/repository"
)

// App — основной API-процесс сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// selectGateway выбирает активный платёжный шлюз по конфигурации.
func selectGateway(cfg *config.Config, db *repository.Storage, logger *slog.Logger) (gateway.Gateway, string, error) {
	switch cfg.GatewayProvider {
	case "stripe":
		stripegw.SetKey(cfg.StripeSecretKey)
		return stripegw.New(cfg.StripeWebhookSecret, db, logger), "Stripe-Signature", nil
	case "adumo":
		return adumo.New(cfg.AdumoMerchantID, cfg.AdumoApplicationID, cfg.AdumoSecret,
			cfg.AdumoBaseURL, cfg.AppBaseURL, logger), "", nil
	}
	return nil, "", fmt.Errorf("unknown gateway provider %q", cfg.GatewayProvider)
}

// New собирает приложение: подключает зависимости, сеет каталог тарифов
// и настраивает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitURL, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.NotificationQueue)
	if err != nil {
		return nil, err
	}
	notifier := notify.New(ch, cfg.NotificationQueue)

	gw, signatureHeader, err := selectGateway(cfg, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("payment gateway selected", slog.String("gateway", gw.Name()))

	tokenMaker := libjwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	planService := planservice.New(db, cacheRedis, logger)
	if err := planService.Seed(ctx); err != nil {
		return nil, err
	}

	deps := &Services{
		Auth:         authservice.New(db, tokenMaker, notifier, logger),
		Plan:         planService,
		Subscription: subservice.New(db, gw, notifier, cacheRedis, logger),
		Ledger:       ledgerservice.New(db),
		Cover:        coverservice.New(db),
		Tokens:       tokenMaker,
		Storage:      db,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, deps, signatureHeader)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", slog.Any("err", closeErr))
		}
		return err
	}
}
