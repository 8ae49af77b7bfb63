package models

import "time"

// Статусы счёта. Других переходов, кроме pending -> paid, нет.
const (
	InvoicePending = "pending"
	InvoicePaid    = "paid"
)

// Invoice — счёт за оплачиваемое событие: новая подписка, доплата при смене
// тарифа, подтверждённый вебхуком платёж. Записи только добавляются.
type Invoice struct {
	ID             int        `json:"id"`
	UserUID        string     `json:"-"`
	SubscriptionID *int       `json:"subscription_id,omitempty"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Transaction — аудит обращения к платёжному шлюзу. Сырые тела запроса и
// ответа сохраняются как есть для разбора инцидентов. Записи только добавляются.
type Transaction struct {
	ID          int       `json:"id"`
	InvoiceID   int       `json:"invoice_id"`
	UserUID     string    `json:"-"`
	Gateway     string    `json:"gateway"`
	ExternalID  string    `json:"external_id"`
	Status      string    `json:"status"`
	RawRequest  string    `json:"-"`
	RawResponse string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdminStats — агрегаты для админской панели. Выручка считается по
// оплаченным счетам, подписчики — по активным подпискам.
type AdminStats struct {
	TotalUsers        int     `json:"total_users"`
	ActiveSubscribers int     `json:"active_subscribers"`
	Revenue           float64 `json:"revenue"`
}
