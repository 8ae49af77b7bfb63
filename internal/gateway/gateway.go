// Package gateway определяет общий контракт платёжных шлюзов.
// Машина состояний подписок параметризуется любой реализацией Gateway;
// жизненный цикл в ней один, различия инкапсулированы в адаптерах.
package gateway

import (
	"context"
	"errors"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

// ErrRemoteGone сигнализирует, что подписка на стороне шлюза уже отсутствует.
// Вызывающие обязаны переживать этот случай: локально отменить и пересоздать,
// а не падать с ошибкой.
var ErrRemoteGone = errors.New("subscription not found on gateway side")

// EventType — тип события вебхука после нормализации адаптером.
type EventType string

// Нормализованные типы событий.
const (
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventIgnored             EventType = "ignored"
)

// Event — нормализованное событие вебхука любого шлюза.
type Event struct {
	Type EventType
	// Reference — ссылка, вшитая при создании подписки; по ней идёт
	// корреляция с локальной записью через gateway_refs.
	Reference  string
	ExternalID string
	Amount     float64
	Currency   string
	Status     string
	// Raw — исходное тело вебхука для аудита.
	Raw string
}

// RedirectForm — подписанная форма для hosted-payment-page редиректа.
// UI автоматически отправляет её POST-ом на страницу провайдера.
// Параметр success в обратном редиректе чисто информационный: доступ
// выдаётся только после подтверждения вебхуком.
type RedirectForm struct {
	URL           string `json:"url"`
	MerchantID    string `json:"merchant_id"`
	ApplicationID string `json:"application_id"`
	AmountCents   int64  `json:"amount_cents"`
	Token         string `json:"token"`
	ReturnURL     string `json:"return_url"`
	CancelURL     string `json:"cancel_url"`
	WebhookURL    string `json:"webhook_url"`
}

// AuditRecord — сырые тела запроса и ответа шлюза для записи в транзакцию.
type AuditRecord struct {
	ExternalID  string
	Status      string
	RawRequest  string
	RawResponse string
}

// CreateResult — результат создания подписки на стороне шлюза.
type CreateResult struct {
	ExternalID string
	// Status — начальный локальный статус: INCOMPLETE, пока платёж не
	// подтверждён вебхуком, либо сразу ACTIVE для оптимистичного пути.
	Status models.SubscriptionStatus
	// InvoiceStatus — статус сопутствующего счёта (paid или pending).
	InvoiceStatus string
	// RequiresPayment — вызывающему нужно отправить пользователя на оплату.
	RequiresPayment bool
	Redirect        *RedirectForm
	Audit           *AuditRecord
}

// UpdateResult — результат смены тарифа на стороне шлюза.
type UpdateResult struct {
	InvoiceStatus string
	Redirect      *RedirectForm
	Audit         *AuditRecord
}

// Gateway — контракт платёжного шлюза.
type Gateway interface {
	// Name возвращает имя шлюза (models.GatewayStripe / models.GatewayAdumo).
	Name() string
	// StrictDuplicates сообщает контракт повторного создания: строгий шлюз
	// отвергает дубликат как конфликт, мягкий возвращает существующую запись.
	StrictDuplicates() bool
	// EnsureCustomer возвращает внешний идентификатор клиента, создавая его
	// при необходимости. Идемпотентен: сохранённый id переиспользуется.
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)
	// CreateSubscription создаёт подписку у шлюза.
	CreateSubscription(ctx context.Context, user *models.User, plan *models.Plan, reference string) (*CreateResult, error)
	// UpdateSubscription переводит подписку на новый тариф; proration —
	// неотрицательная доплата, уже посчитанная машиной состояний.
	UpdateSubscription(ctx context.Context, user *models.User, sub *models.Subscription,
		newPlan *models.Plan, proration float64, reference string) (*UpdateResult, error)
	// CancelSubscription помечает подписку у шлюза как непродлеваемую.
	CancelSubscription(ctx context.Context, sub *models.Subscription) error
	// ParseWebhook проверяет подпись и нормализует событие вебхука.
	ParseWebhook(body []byte, signature string) (*Event, error)
}
