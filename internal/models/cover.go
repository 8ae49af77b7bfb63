package models

import "time"

// ExtendedCover — застрахованный иждивенец пользователя. Живёт независимо
// от подписки; ежемесячный взнос пересчитывается при каждом изменении
// возраста, родства или страховой суммы.
type ExtendedCover struct {
	ID             int       `json:"id"`
	UserUID        string    `json:"-"`
	Name           string    `json:"name"`
	Relation       string    `json:"relation"`
	Age            int       `json:"age"`
	CoverAmount    float64   `json:"cover_amount"`
	MonthlyPremium float64   `json:"monthly_premium"`
	CreatedAt      time.Time `json:"created_at"`
}
