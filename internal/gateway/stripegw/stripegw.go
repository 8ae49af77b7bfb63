// Package stripegw реализует адаптер карточного шлюза поверх официального
// Stripe SDK. Повторяющиеся списания полностью делегированы Stripe,
// локальное состояние — зеркало, обновляемое вебхуками.
package stripegw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/customer"
	stripeplan "github.com/stripe/stripe-go/plan"
	"github.com/stripe/stripe-go/sub"
	"github.com/stripe/stripe-go/webhook"

	"github.com/magabrotheeeer/coverplan/internal/gateway"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// DevPricePrefix — сентинел для окружений без реальных ключей: цены с таким
// префиксом не уходят в сеть, адаптер фабрикует локально активную подписку.
const DevPricePrefix = "dev_"

// Catalog сохраняет внешние идентификаторы тарифа после материализации
// продукта и цены на стороне Stripe.
type Catalog interface {
	AttachExternalIDs(ctx context.Context, planID int, productID, priceID string) error
}

// Adapter — реализация gateway.Gateway поверх Stripe SDK.
type Adapter struct {
	webhookSecret string
	catalog       Catalog
	log           *slog.Logger
}

// SetKey настраивает ключ Stripe SDK один раз при старте приложения.
func SetKey(key string) { stripe.Key = key }

// New создаёт адаптер Stripe.
func New(webhookSecret string, catalog Catalog, log *slog.Logger) *Adapter {
	return &Adapter{webhookSecret: webhookSecret, catalog: catalog, log: log}
}

// Name возвращает имя шлюза.
func (a *Adapter) Name() string { return models.GatewayStripe }

// StrictDuplicates: повторная подписка на тот же тариф — конфликт.
func (a *Adapter) StrictDuplicates() bool { return true }

// EnsureCustomer возвращает сохранённый идентификатор клиента Stripe
// или создаёт нового клиента.
func (a *Adapter) EnsureCustomer(_ context.Context, user *models.User) (string, error) {
	const op = "stripegw.EnsureCustomer"
	if id := user.CustomerIDFor(models.GatewayStripe); id != nil && *id != "" {
		return *id, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
	}
	params.AddMetadata("user_uid", user.UID)
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cust.ID, nil
}

// materializePlan возвращает внешний идентификатор цены тарифа, при первом
// обращении создавая продукт и цену на стороне Stripe и привязывая
// идентификаторы к каталогу. Без ключа SDK сетевых вызовов нет: фабрикуются
// dev-идентификаторы, и дальше срабатывает dev-обход.
func (a *Adapter) materializePlan(ctx context.Context, p *models.Plan) (string, error) {
	const op = "stripegw.materializePlan"

	if p.ExternalPriceID != nil && *p.ExternalPriceID != "" {
		return *p.ExternalPriceID, nil
	}

	var productID, priceID string
	if stripe.Key == "" {
		productID = DevPricePrefix + "prod_" + strings.ToLower(p.Name)
		priceID = DevPricePrefix + "price_" + strings.ToLower(p.Name)
		a.log.Warn("stripe key is empty, fabricating dev plan ids",
			slog.String("plan", p.Name))
	} else {
		params := &stripe.PlanParams{
			Amount:   stripe.Int64(int64(p.Price * 100)),
			Currency: stripe.String(strings.ToLower(p.Currency)),
			Interval: stripe.String(string(stripe.PlanIntervalMonth)),
			Product:  &stripe.PlanProductParams{Name: stripe.String(p.Name)},
		}
		params.AddMetadata("plan_name", p.Name)
		created, err := stripeplan.New(params)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		productID = created.Product.ID
		priceID = created.ID
		a.log.Info("stripe plan materialized",
			slog.String("plan", p.Name), slog.String("price_id", priceID))
	}

	if err := a.catalog.AttachExternalIDs(ctx, p.ID, productID, priceID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	p.ExternalProductID = &productID
	p.ExternalPriceID = &priceID
	return priceID, nil
}

// CreateSubscription создаёт подписку в Stripe. Производственный путь
// стартует в INCOMPLETE и ждёт подтверждения вебхуком; dev-путь сразу ACTIVE.
func (a *Adapter) CreateSubscription(ctx context.Context, user *models.User,
	plan *models.Plan, reference string) (*gateway.CreateResult, error) {
	const op = "stripegw.CreateSubscription"

	priceID, err := a.materializePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if strings.HasPrefix(priceID, DevPricePrefix) {
		a.log.Warn("stripe dev bypass: fabricating local subscription",
			slog.String("plan", plan.Name))
		return &gateway.CreateResult{
			ExternalID:      "dev_sub_" + reference,
			Status:          models.StatusActive,
			InvoiceStatus:   models.InvoicePaid,
			RequiresPayment: false,
		}, nil
	}

	customerID, err := a.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(priceID)},
		},
	}
	params.AddMetadata("reference", reference)
	params.AddMetadata("user_uid", user.UID)

	created, err := sub.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, _ := json.Marshal(created)
	return &gateway.CreateResult{
		ExternalID: created.ID,
		// Доступ откроется после invoice.payment_succeeded.
		Status:          models.StatusIncomplete,
		InvoiceStatus:   models.InvoicePending,
		RequiresPayment: true,
		Audit: &gateway.AuditRecord{
			ExternalID:  created.ID,
			Status:      string(created.Status),
			RawRequest:  fmt.Sprintf(`{"customer":%q,"plan":%q,"reference":%q}`, customerID, priceID, reference),
			RawResponse: string(raw),
		},
	}, nil
}

// UpdateSubscription переводит позицию подписки Stripe на новую цену.
// Доплату Stripe выставляет пропорциональными позициями счёта сам.
func (a *Adapter) UpdateSubscription(ctx context.Context, _ *models.User,
	subscription *models.Subscription, newPlan *models.Plan, _ float64, _ string) (*gateway.UpdateResult, error) {
	const op = "stripegw.UpdateSubscription"

	priceID, err := a.materializePlan(ctx, newPlan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if strings.HasPrefix(priceID, DevPricePrefix) ||
		strings.HasPrefix(subscription.ExternalID, "dev_sub_") {
		return &gateway.UpdateResult{InvoiceStatus: models.InvoicePaid}, nil
	}

	remote, err := sub.Get(subscription.ExternalID, nil)
	if err != nil {
		return nil, a.wrapRemote(op, err)
	}
	if len(remote.Items.Data) == 0 {
		return nil, fmt.Errorf("%s: subscription %s has no items", op, subscription.ExternalID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:   stripe.String(remote.Items.Data[0].ID),
				Plan: stripe.String(priceID),
			},
		},
	}
	updated, err := sub.Update(subscription.ExternalID, params)
	if err != nil {
		return nil, a.wrapRemote(op, err)
	}

	raw, _ := json.Marshal(updated)
	return &gateway.UpdateResult{
		InvoiceStatus: models.InvoicePending,
		Audit: &gateway.AuditRecord{
			ExternalID:  updated.ID,
			Status:      string(updated.Status),
			RawRequest:  fmt.Sprintf(`{"subscription":%q,"plan":%q}`, subscription.ExternalID, priceID),
			RawResponse: string(raw),
		},
	}, nil
}

// CancelSubscription помечает подписку Stripe как непродлеваемую,
// доступ сохраняется до конца оплаченного периода.
func (a *Adapter) CancelSubscription(_ context.Context, subscription *models.Subscription) error {
	const op = "stripegw.CancelSubscription"

	if strings.HasPrefix(subscription.ExternalID, "dev_sub_") {
		return nil
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	if _, err := sub.Update(subscription.ExternalID, params); err != nil {
		return a.wrapRemote(op, err)
	}
	return nil
}

// ParseWebhook проверяет подпись Stripe-Signature и нормализует событие.
func (a *Adapter) ParseWebhook(body []byte, signature string) (*gateway.Event, error) {
	const op = "stripegw.ParseWebhook"

	event, err := webhook.ConstructEvent(body, signature, a.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	object := event.Data.Object
	result := &gateway.Event{
		Type: gateway.EventIgnored,
		Raw:  string(body),
	}
	if metadata, ok := object["metadata"].(map[string]interface{}); ok {
		if ref, ok := metadata["reference"].(string); ok {
			result.Reference = ref
		}
	}

	switch event.Type {
	case "invoice.payment_succeeded":
		result.Type = gateway.EventPaymentSucceeded
		if id, ok := object["subscription"].(string); ok {
			result.ExternalID = id
		}
		if total, ok := object["total"].(float64); ok {
			result.Amount = total / 100
		}
		if currency, ok := object["currency"].(string); ok {
			result.Currency = strings.ToUpper(currency)
		}
	case "invoice.payment_failed":
		result.Type = gateway.EventPaymentFailed
		if id, ok := object["subscription"].(string); ok {
			result.ExternalID = id
		}
	case "customer.subscription.updated":
		result.Type = gateway.EventSubscriptionUpdated
		if id, ok := object["id"].(string); ok {
			result.ExternalID = id
		}
		if status, ok := object["status"].(string); ok {
			result.Status = status
		}
	case "customer.subscription.deleted":
		result.Type = gateway.EventSubscriptionDeleted
		if id, ok := object["id"].(string); ok {
			result.ExternalID = id
		}
		if status, ok := object["status"].(string); ok {
			result.Status = status
		}
	}
	return result, nil
}

// wrapRemote переводит сетевые ошибки Stripe в ошибки шлюза;
// HTTP 404 означает, что подписки на стороне Stripe уже нет.
func (a *Adapter) wrapRemote(op string, err error) error {
	var stripeErr *stripe.Error
	if ok := asStripeError(err, &stripeErr); ok && stripeErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, gateway.ErrRemoteGone)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func asStripeError(err error, target **stripe.Error) bool {
	se, ok := err.(*stripe.Error)
	if ok {
		*target = se
	}
	return ok
}
