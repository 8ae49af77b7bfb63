package models

import "encoding/json"

// Названия пяти фиксированных тарифов. Закрытый перечень:
// planName в запросах должен совпадать с одним из них.
const (
	PlanEssential = "Essential"
	PlanStandard  = "Standard"
	PlanPremium   = "Premium"
	PlanFamily    = "Family"
	PlanUltimate  = "Ultimate"
)

// PlanNames перечисляет тарифы в порядке возрастания цены.
var PlanNames = []string{PlanEssential, PlanStandard, PlanPremium, PlanFamily, PlanUltimate}

// Plan описывает неизменяемую запись каталога тарифов.
// Мутируется только для привязки внешних идентификаторов шлюза.
type Plan struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Currency string   `json:"currency"`
	Features []string `json:"features"`
	// Идентификаторы продукта и цены во внешней платёжной системе.
	ExternalProductID *string `json:"-"`
	ExternalPriceID   *string `json:"-"`
}

// MarshalFeatures сериализует список возможностей тарифа для хранения
// в текстовой колонке. Порядок элементов сохраняется.
func MarshalFeatures(features []string) (string, error) {
	raw, err := json.Marshal(features)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// UnmarshalFeatures восстанавливает список возможностей из текстовой колонки.
func UnmarshalFeatures(raw string) ([]string, error) {
	var features []string
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		return nil, err
	}
	return features, nil
}
