package coverplan

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coverplan/internal/config"
)

// Публичный контракт API: клиенты ходят по этим путям, переименование ломает их.
func TestRegisterRoutes_PublicPaths(t *testing.T) {
	router := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{GatewayProvider: "stripe"}
	RegisterRoutes(router, logger, cfg, &Services{}, "Stripe-Signature")

	mounted := map[string]bool{}
	err := chi.Walk(router, func(method, route string, _ http.Handler,
		_ ...func(http.Handler) http.Handler) error {
		mounted[method+" "+strings.TrimSuffix(route, "/")] = true
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"POST /api/auth/verify-email",
		"POST /api/auth/request-reset",
		"POST /api/auth/request-password-reset",
		"POST /api/auth/reset-password",
		"POST /api/auth/logout",
		"GET /api/auth/me",
		"GET /api/auth/user",
		"GET /api/plans",
		"POST /api/subscriptions",
		"POST /api/subscriptions/create",
		"GET /api/subscriptions/current",
		"PUT /api/subscriptions",
		"POST /api/subscriptions/update",
		"DELETE /api/subscriptions",
		"POST /api/subscriptions/cancel",
		"GET /api/invoices",
		"POST /api/covers",
		"GET /api/covers",
		"GET /api/covers/amounts",
		"PUT /api/covers/{id}",
		"DELETE /api/covers/{id}",
		"GET /api/admin/users",
		"GET /api/admin/stats",
		"POST /api/webhooks/stripe",
		"GET /api/health",
	} {
		assert.True(t, mounted[want], "route not mounted: %s", want)
	}
}
