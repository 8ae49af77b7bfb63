package models

import "time"

// SubscriptionStatus — статус подписки в локальном зеркале.
type SubscriptionStatus string

// Статусы жизненного цикла подписки.
// INCOMPLETE ставится, пока шлюз не подтвердил первый платёж вебхуком.
const (
	StatusIncomplete SubscriptionStatus = "INCOMPLETE"
	StatusActive     SubscriptionStatus = "ACTIVE"
	StatusPastDue    SubscriptionStatus = "PAST_DUE"
	StatusCanceled   SubscriptionStatus = "CANCELED"
)

// Имена поддерживаемых платёжных шлюзов.
const (
	GatewayStripe = "stripe"
	GatewayAdumo  = "adumo"
)

// Subscription — локальная запись подписки пользователя на тариф.
// Текущей считается самая свежая по created_at запись пользователя.
type Subscription struct {
	ID                 int                `json:"id"`
	UserUID            string             `json:"-"`
	PlanID             int                `json:"-"`
	PlanName           string             `json:"plan_name"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	// ExternalID — идентификатор подписки на стороне шлюза.
	ExternalID string `json:"-"`
	// Reference — ссылка вида sub_<uid>_<unix>, передаётся шлюзу в метаданных.
	// Корреляция вебхуков идёт через таблицу gateway_refs, а не парсингом.
	Reference string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
