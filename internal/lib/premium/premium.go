// Package premium содержит чистые функции расчёта ежемесячного взноса
// за иждивенца по таблице тарифных коридоров (возраст x категория родства)
// и бизнес-правила доступных страховых сумм.
package premium

// Relation — категория родства иждивенца.
type Relation string

// Поддерживаемые категории родства.
const (
	RelationSpouse         Relation = "SPOUSE"
	RelationChild          Relation = "CHILD"
	RelationParent         Relation = "PARENT"
	RelationExtendedFamily Relation = "EXTENDED_FAMILY"
)

// FallbackRate — тариф SPOUSE 18-45 за 1000 страховой суммы.
// Применяется, когда возраст не попадает ни в один коридор категории:
// функция молча возвращает минимальный тариф, а не ошибку.
// Поведение сохранено как есть до решения продукта.
const FallbackRate = 2.55

// band — тарифный коридор: границы возраста включительно с обеих сторон.
type band struct {
	minAge int
	maxAge int
	rate   float64
}

// Коридоры не пересекаются внутри категории.
var rateTable = map[Relation][]band{
	RelationSpouse: {
		{18, 45, 2.55},
		{46, 50, 3.15},
		{51, 60, 4.10},
		{61, 70, 6.83},
	},
	RelationChild: {
		{0, 5, 1.20},
		{6, 13, 2.05},
		{14, 20, 2.85},
	},
	RelationParent: {
		{18, 25, 2.95},
		{26, 30, 3.40},
		{31, 35, 3.95},
		{36, 40, 4.50},
		{41, 45, 5.40},
		{46, 50, 6.75},
		{51, 60, 9.80},
		{61, 70, 20.08},
		{71, 75, 28.33},
	},
	RelationExtendedFamily: {
		{18, 45, 3.10},
		{46, 55, 4.95},
		{56, 64, 7.85},
	},
}

// Calculate возвращает ежемесячный взнос за иждивенца:
// страховая сумма нормализуется к тысячам и умножается на тариф коридора.
// Функция детерминирована и не имеет побочных эффектов.
func Calculate(age int, relation Relation, coverAmount float64) float64 {
	return coverAmount / 1000 * Rate(age, relation)
}

// Rate возвращает тариф за 1000 страховой суммы для возраста и категории.
// Вне всех коридоров категории возвращается FallbackRate.
func Rate(age int, relation Relation) float64 {
	for _, b := range rateTable[relation] {
		if age >= b.minAge && age <= b.maxAge {
			return b.rate
		}
	}
	return FallbackRate
}

// Доступные страховые суммы. Ограничение сверху для 50+ — бизнес-правило,
// а не техническое ограничение.
var (
	amountsUnder50 = []float64{10000, 20000, 30000, 50000, 75000, 100000}
	amounts50Plus  = []float64{10000, 20000, 30000}
)

// AvailableCoverAmounts возвращает фиксированный возрастающий список
// допустимых страховых сумм. До 50 лет доступен расширенный список до
// 100000, с 50 лет (или при неизвестном возрасте) — максимум 30000.
func AvailableCoverAmounts(age int) []float64 {
	if age > 0 && age < 50 {
		res := make([]float64, len(amountsUnder50))
		copy(res, amountsUnder50)
		return res
	}
	res := make([]float64, len(amounts50Plus))
	copy(res, amounts50Plus)
	return res
}

// AllowedCoverAmount сообщает, допустима ли страховая сумма для возраста.
func AllowedCoverAmount(age int, coverAmount float64) bool {
	for _, a := range AvailableCoverAmounts(age) {
		if a == coverAmount {
			return true
		}
	}
	return false
}
