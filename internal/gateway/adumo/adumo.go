// Package adumo реализует адаптер редирект-шлюза с hosted-payment-page.
// У провайдера нет понятия рекуррентного списания: каждый биллинговый цикл —
// это новый редирект на платёжную страницу. Подписка локально оптимистично
// активируется сразу, подтверждение приходит только асинхронным вебхуком.
package adumo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/coverplan/internal/gateway"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Adapter — реализация gateway.Gateway для редирект-шлюза Adumo.
type Adapter struct {
	merchantID    string
	applicationID string
	secret        string
	baseURL       string
	appBaseURL    string
	httpClient    *http.Client
	log           *slog.Logger
}

// New создаёт адаптер Adumo.
func New(merchantID, applicationID, secret, baseURL, appBaseURL string, log *slog.Logger) *Adapter {
	return &Adapter{
		merchantID:    merchantID,
		applicationID: applicationID,
		secret:        secret,
		baseURL:       baseURL,
		appBaseURL:    appBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		log:           log,
	}
}

// Name возвращает имя шлюза.
func (a *Adapter) Name() string { return models.GatewayAdumo }

// StrictDuplicates: повторное создание идемпотентно возвращает существующую запись.
func (a *Adapter) StrictDuplicates() bool { return false }

// EnsureCustomer возвращает сохранённый идентификатор клиента или чеканит
// новый: у провайдера нет учёта клиентов, идентификатор локальный.
func (a *Adapter) EnsureCustomer(_ context.Context, user *models.User) (string, error) {
	if id := user.CustomerIDFor(models.GatewayAdumo); id != nil && *id != "" {
		return *id, nil
	}
	return "adu_" + uuid.New().String(), nil
}

// requestClaims — claims подписанного токена платёжной формы.
type requestClaims struct {
	Reference     string `json:"mref"`
	AmountCents   int64  `json:"amount"`
	MerchantID    string `json:"mid"`
	ApplicationID string `json:"aid"`
	jwtlib.RegisteredClaims
}

// signToken подписывает параметры платежа секретом мерчанта.
func (a *Adapter) signToken(reference string, amountCents int64) (string, error) {
	claims := requestClaims{
		Reference:     reference,
		AmountCents:   amountCents,
		MerchantID:    a.merchantID,
		ApplicationID: a.applicationID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}

// redirectForm собирает форму для автоматической отправки на hosted-страницу.
func (a *Adapter) redirectForm(reference string, amount float64) (*gateway.RedirectForm, error) {
	amountCents := int64(math.Round(amount * 100))
	token, err := a.signToken(reference, amountCents)
	if err != nil {
		return nil, err
	}
	return &gateway.RedirectForm{
		URL:           a.baseURL + "/products/payments/v1/initialise",
		MerchantID:    a.merchantID,
		ApplicationID: a.applicationID,
		AmountCents:   amountCents,
		Token:         token,
		ReturnURL:     a.appBaseURL + "/payment/return",
		CancelURL:     a.appBaseURL + "/payment/cancel",
		WebhookURL:    a.appBaseURL + "/api/webhooks/adumo",
	}, nil
}

// CreateSubscription оптимистично активирует подписку и возвращает
// подписанную форму редиректа. Счёт помечается оплаченным сразу —
// откат произойдёт по вебхуку о неуспехе.
func (a *Adapter) CreateSubscription(_ context.Context, user *models.User,
	plan *models.Plan, reference string) (*gateway.CreateResult, error) {
	const op = "adumo.CreateSubscription"

	form, err := a.redirectForm(reference, plan.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("prepared adumo redirect",
		slog.String("reference", reference), slog.String("plan", plan.Name))

	return &gateway.CreateResult{
		ExternalID:      reference,
		Status:          models.StatusActive,
		InvoiceStatus:   models.InvoicePaid,
		RequiresPayment: true,
		Redirect:        form,
		Audit: &gateway.AuditRecord{
			ExternalID: reference,
			Status:     "redirect_prepared",
			RawRequest: fmt.Sprintf(`{"merchant":%q,"reference":%q,"amount_cents":%d,"user":%q}`,
				a.merchantID, reference, form.AmountCents, user.UID),
		},
	}, nil
}

// UpdateSubscription выставляет отдельный отложенный счёт на доплату
// и готовит редирект на её оплату. Доплата нулевая — редирект не нужен.
func (a *Adapter) UpdateSubscription(_ context.Context, _ *models.User,
	sub *models.Subscription, newPlan *models.Plan, proration float64, reference string) (*gateway.UpdateResult, error) {
	const op = "adumo.UpdateSubscription"

	if proration <= 0 {
		return &gateway.UpdateResult{InvoiceStatus: models.InvoicePaid}, nil
	}

	form, err := a.redirectForm(reference, proration)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &gateway.UpdateResult{
		InvoiceStatus: models.InvoicePending,
		Redirect:      form,
		Audit: &gateway.AuditRecord{
			ExternalID: sub.ExternalID,
			Status:     "upgrade_redirect_prepared",
			RawRequest: fmt.Sprintf(`{"reference":%q,"new_plan":%q,"amount_cents":%d}`,
				reference, newPlan.Name, form.AmountCents),
		},
	}, nil
}

// CancelSubscription уведомляет провайдера, что ссылка мерчанта закрыта.
// Рекуррентных списаний у провайдера нет, поэтому вызов best-effort:
// исчезнувшая на той стороне запись (404) не считается ошибкой.
func (a *Adapter) CancelSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "adumo.CancelSubscription"

	body := strings.NewReader(fmt.Sprintf(`{"merchantReference":%q}`, sub.Reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/products/payments/v1/close", body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// Провайдер недоступен: локальная отмена важнее, пишем в лог и выходим.
		a.log.Warn("adumo close request failed", slog.String("reference", sub.Reference))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, gateway.ErrRemoteGone)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	return nil
}

// webhookPayload — тело server-to-server уведомления провайдера.
type webhookPayload struct {
	Token                string `json:"token"`
	MerchantReference    string `json:"merchantReference"`
	TransactionReference string `json:"transactionReference"`
	Status               string `json:"status"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
}

// ParseWebhook проверяет JWT вебхука против секрета мерчанта и сверяет
// ссылку из claims с телом. Непроверяемый токен — отказ без мутаций.
func (a *Adapter) ParseWebhook(body []byte, _ string) (*gateway.Event, error) {
	const op = "adumo.ParseWebhook"

	payload, err := decodePayload(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims := &requestClaims{}
	token, err := jwtlib.ParseWithClaims(payload.Token, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%s: invalid webhook token: %w", op, err)
	}
	if claims.Reference != payload.MerchantReference {
		return nil, fmt.Errorf("%s: token reference mismatch", op)
	}

	event := &gateway.Event{
		Reference:  payload.MerchantReference,
		ExternalID: payload.TransactionReference,
		Amount:     float64(payload.Amount) / 100,
		Currency:   payload.Currency,
		Status:     payload.Status,
		Raw:        string(body),
	}
	switch strings.ToUpper(payload.Status) {
	case "SUCCESSFUL", "AUTHORISED", "SETTLED":
		event.Type = gateway.EventPaymentSucceeded
	case "FAILED", "DECLINED":
		event.Type = gateway.EventPaymentFailed
	default:
		event.Type = gateway.EventIgnored
	}
	return event, nil
}
