// Package models содержит доменные структуры сервиса защиты (планы, подписки,
// счета, транзакции, иждивенцы), а также вспомогательные типы для приёма
// данных из JSON-запросов.
package models

import "time"

// Роли пользователей. Админская роль открывает доступ к /api/admin.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User представляет зарегистрированного пользователя.
// Пользователь никогда не удаляется физически, только деактивируется.
type User struct {
	UID               string     `json:"uid"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordHash      string     `json:"-"`
	Role              string     `json:"role"`
	EmailVerified     bool       `json:"email_verified"`
	VerificationToken *string    `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	// Идентификаторы клиента во внешних платёжных системах,
	// по одному на каждый шлюз. Создаются лениво и переиспользуются.
	StripeCustomerID *string   `json:"-"`
	AdumoCustomerID  *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// CustomerIDFor возвращает сохранённый идентификатор клиента для шлюза.
func (u *User) CustomerIDFor(gatewayName string) *string {
	switch gatewayName {
	case GatewayStripe:
		return u.StripeCustomerID
	case GatewayAdumo:
		return u.AdumoCustomerID
	}
	return nil
}

// SetCustomerIDFor запоминает идентификатор клиента для шлюза в памяти;
// запись в хранилище остаётся за вызывающим.
func (u *User) SetCustomerIDFor(gatewayName, customerID string) {
	switch gatewayName {
	case GatewayStripe:
		u.StripeCustomerID = &customerID
	case GatewayAdumo:
		u.AdumoCustomerID = &customerID
	}
}
