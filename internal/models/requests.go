package models

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

// DummyLogin используется для приёма данных входа.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DummyVerifyEmail — подтверждение почты по токену из письма.
type DummyVerifyEmail struct {
	Token string `json:"token" validate:"required,uuid"`
}

// DummyRequestReset — запрос письма для сброса пароля.
type DummyRequestReset struct {
	Email string `json:"email" validate:"required,email"`
}

// DummyResetPassword — установка нового пароля по токену сброса.
type DummyResetPassword struct {
	Token    string `json:"token" validate:"required,uuid"`
	Password string `json:"password" validate:"required,min=8"`
}

// DummySelectPlan — выбор тарифа при создании или смене подписки.
// Название тарифа — закрытый перечень из пяти значений.
type DummySelectPlan struct {
	PlanName string `json:"planName" validate:"required,oneof=Essential Standard Premium Family Ultimate"`
}

// DummyCover используется для создания и обновления записи иждивенца.
type DummyCover struct {
	Name        string  `json:"name" validate:"required"`
	Relation    string  `json:"relation" validate:"required,oneof=SPOUSE CHILD PARENT EXTENDED_FAMILY"`
	Age         int     `json:"age" validate:"gte=0,lte=120"`
	CoverAmount float64 `json:"cover_amount" validate:"required,gt=0"`
}

// Notification — сообщение для очереди уведомлений. Потребитель
// (cmd/notifier) превращает его в письмо.
type Notification struct {
	Type     string  `json:"type"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	PlanName string  `json:"plan_name,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Token    string  `json:"token,omitempty"`
}

// Типы уведомлений.
const (
	NotifyWelcome      = "welcome"
	NotifyCancellation = "cancellation"
	NotifyReceipt      = "receipt"
	NotifyVerifyEmail  = "verify_email"
	NotifyResetLink    = "reset_link"
)
