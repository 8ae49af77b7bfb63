// Package subscription реализует машину состояний жизненного цикла подписки.
// Жизненный цикл один для всех шлюзов: различия поведения (строгие дубликаты,
// редирект на оплату, оптимистичная активация) инкапсулированы в адаптерах
// gateway.Gateway, сервис лишь параметризуется ими.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/coverplan/internal/gateway"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Ошибки уровня сервиса; HTTP-слой переводит их в коды ответов.
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("subscription for this plan already exists")
)

// Repository — операции хранилища, нужные машине состояний.
type Repository interface {
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	SaveGatewayCustomerID(ctx context.Context, uid, gatewayName, customerID string) error
	GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	FindSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error)
	FindSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	CreateSubscriptionWithInvoice(ctx context.Context, sub models.Subscription,
		inv models.Invoice, txn *models.Transaction) (int, error)
	ChangeSubscriptionPlan(ctx context.Context, subID, newPlanID int,
		inv *models.Invoice, txn *models.Transaction) error
	MarkCancelAtPeriodEnd(ctx context.Context, subID int) (int, error)
	UpdateSubscriptionStatus(ctx context.Context, subID int,
		status models.SubscriptionStatus, canceledAt *time.Time) error
	ConfirmPayment(ctx context.Context, subID int,
		inv models.Invoice, txn models.Transaction) error
}

// Notifier публикует уведомления в очередь. Ошибки публикации не должны
// ломать основную операцию: сервис их только логирует.
type Notifier interface {
	Publish(ctx context.Context, msg models.Notification) error
}

// Cache — кеш текущей подписки пользователя.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

const cacheTTL = 5 * time.Minute

func currentKey(userUID string) string {
	return "subscription:current:" + userUID
}

// Service — машина состояний подписок поверх одного платёжного шлюза.
type Service struct {
	repo     Repository
	gw       gateway.Gateway
	notifier Notifier
	cache    Cache
	log      *slog.Logger
}

// New создаёт сервис подписок.
func New(repo Repository, gw gateway.Gateway, notifier Notifier, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, gw: gw, notifier: notifier, cache: cache, log: log}
}

// Output — результат операции создания или смены тарифа.
// Redirect заполнен, когда пользователя нужно отправить на платёжную страницу.
type Output struct {
	Subscription    *models.Subscription  `json:"subscription"`
	RequiresPayment bool                  `json:"requires_payment"`
	Redirect        *gateway.RedirectForm `json:"redirect,omitempty"`
}

// Create оформляет подписку пользователя на тариф.
// Повторное оформление того же тарифа — конфликт для строгого шлюза и
// идемпотентный возврат существующей записи для мягкого; оформление другого
// тарифа при живой подписке делегируется смене тарифа.
func (s *Service) Create(ctx context.Context, userUID, planName string) (*Output, error) {
	const op = "subscription.Create"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := s.repo.GetPlanByName(ctx, planName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.repo.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current != nil && current.Status != models.StatusCanceled {
		if current.PlanName == plan.Name {
			if s.gw.StrictDuplicates() {
				return nil, ErrAlreadySubscribed
			}
			s.log.Info("duplicate subscribe, returning existing",
				slog.String("uid", userUID), slog.String("plan", plan.Name))
			return &Output{Subscription: current}, nil
		}
		return s.Update(ctx, userUID, planName)
	}

	customerID, err := s.gw.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stored := user.CustomerIDFor(s.gw.Name()); stored == nil || *stored != customerID {
		if err := s.repo.SaveGatewayCustomerID(ctx, userUID, s.gw.Name(), customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.SetCustomerIDFor(s.gw.Name(), customerID)
	}

	reference := fmt.Sprintf("sub_%s_%d", userUID, time.Now().Unix())
	res, err := s.gw.CreateSubscription(ctx, user, plan, reference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	sub := models.Subscription{
		UserUID:            userUID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Status:             res.Status,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		ExternalID:         res.ExternalID,
		Reference:          reference,
	}
	inv := models.Invoice{
		UserUID:  userUID,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Status:   res.InvoiceStatus,
	}
	if res.InvoiceStatus == models.InvoicePaid {
		inv.PaidAt = &now
	}

	subID, err := s.repo.CreateSubscriptionWithInvoice(ctx, sub, inv, auditToTransaction(userUID, s.gw.Name(), res.Audit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = subID
	sub.CreatedAt = now

	s.invalidateCurrent(userUID)
	s.publish(ctx, models.Notification{
		Type:     models.NotifyWelcome,
		Email:    user.Email,
		Name:     user.Name,
		PlanName: plan.Name,
		Amount:   plan.Price,
	})

	return &Output{
		Subscription:    &sub,
		RequiresPayment: res.RequiresPayment,
		Redirect:        res.Redirect,
	}, nil
}

// Update переводит текущую подписку на другой тариф. Доплата считается как
// разница цен, но не меньше нуля: даунгрейд бесплатен, возвратов нет.
func (s *Service) Update(ctx context.Context, userUID, planName string) (*Output, error) {
	const op = "subscription.Update"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	newPlan, err := s.repo.GetPlanByName(ctx, planName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.repo.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current == nil || current.Status == models.StatusCanceled {
		return nil, ErrSubscriptionNotFound
	}
	if current.PlanName == newPlan.Name {
		return nil, ErrAlreadySubscribed
	}

	oldPlan, err := s.repo.GetPlanByName(ctx, current.PlanName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	proration := newPlan.Price - oldPlan.Price
	if proration < 0 {
		proration = 0
	}

	res, err := s.gw.UpdateSubscription(ctx, user, current, newPlan, proration, current.Reference)
	if err != nil {
		if !errors.Is(err, gateway.ErrRemoteGone) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// Подписки на стороне шлюза уже нет: устаревшая запись отменяется
		// локально, новый тариф оформляется через путь создания.
		s.log.Warn("subscription already gone on gateway side, canceling locally and recreating",
			slog.String("reference", current.Reference))
		now := time.Now()
		if err := s.repo.UpdateSubscriptionStatus(ctx, current.ID, models.StatusCanceled, &now); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.invalidateCurrent(userUID)
		return s.Create(ctx, userUID, planName)
	}

	var inv *models.Invoice
	if proration > 0 {
		now := time.Now()
		inv = &models.Invoice{
			UserUID:  userUID,
			Amount:   proration,
			Currency: newPlan.Currency,
			Status:   res.InvoiceStatus,
		}
		if res.InvoiceStatus == models.InvoicePaid {
			inv.PaidAt = &now
		}
	}

	if err := s.repo.ChangeSubscriptionPlan(ctx, current.ID, newPlan.ID, inv,
		auditToTransaction(userUID, s.gw.Name(), res.Audit)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	current.PlanID = newPlan.ID
	current.PlanName = newPlan.Name

	s.invalidateCurrent(userUID)

	return &Output{
		Subscription:    current,
		RequiresPayment: res.Redirect != nil,
		Redirect:        res.Redirect,
	}, nil
}

// Cancel помечает подписку к завершению в конце оплаченного периода.
// Статус и границы периода не трогаются: доступ сохраняется до конца периода.
// Исчезнувшая на стороне шлюза подписка отменяется локально без ошибки.
func (s *Service) Cancel(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.Cancel"

	current, err := s.repo.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current == nil || current.Status == models.StatusCanceled {
		return nil, ErrSubscriptionNotFound
	}

	if err := s.gw.CancelSubscription(ctx, current); err != nil {
		if !errors.Is(err, gateway.ErrRemoteGone) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn("subscription already gone on gateway side, canceling locally",
			slog.String("reference", current.Reference))
	}

	rows, err := s.repo.MarkCancelAtPeriodEnd(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return nil, ErrSubscriptionNotFound
	}
	current.CancelAtPeriodEnd = true

	s.invalidateCurrent(userUID)
	if user, err := s.repo.GetUserByUID(ctx, userUID); err == nil {
		s.publish(ctx, models.Notification{
			Type:     models.NotifyCancellation,
			Email:    user.Email,
			Name:     user.Name,
			PlanName: current.PlanName,
		})
	}
	return current, nil
}

// Current возвращает текущую подписку пользователя, сначала заглядывая в кеш.
func (s *Service) Current(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.Current"

	var cached models.Subscription
	if hit, err := s.cache.Get(currentKey(userUID), &cached); err == nil && hit {
		return &cached, nil
	}

	current, err := s.repo.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current == nil {
		return nil, ErrSubscriptionNotFound
	}
	if err := s.cache.Set(currentKey(userUID), current, cacheTTL); err != nil {
		s.log.Warn("failed to cache current subscription", sl.Err(err))
	}
	return current, nil
}

// HandleWebhook применяет нормализованное событие шлюза к локальному зеркалу.
// Непроверяемая подпись — ошибка без мутаций; событие с неизвестной ссылкой —
// no-op: чужие и устаревшие уведомления молча игнорируются.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	const op = "subscription.HandleWebhook"

	event, err := s.gw.ParseWebhook(body, signature)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if event.Type == gateway.EventIgnored {
		return nil
	}

	sub, err := s.correlate(ctx, event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		s.log.Warn("webhook for unknown subscription, ignoring",
			slog.String("reference", event.Reference),
			slog.String("external_id", event.ExternalID))
		return nil
	}

	switch event.Type {
	case gateway.EventPaymentSucceeded:
		err = s.applyPaymentSucceeded(ctx, sub, event)
	case gateway.EventPaymentFailed:
		err = s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusPastDue, nil)
	case gateway.EventSubscriptionUpdated:
		if status, ok := mapRemoteStatus(event.Status); ok {
			err = s.repo.UpdateSubscriptionStatus(ctx, sub.ID, status, nil)
		}
	case gateway.EventSubscriptionDeleted:
		now := time.Now()
		err = s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusCanceled, &now)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCurrent(sub.UserUID)
	return nil
}

// correlate находит локальную подписку по событию: сначала по ссылке через
// gateway_refs, затем по внешнему идентификатору. Ссылки не парсятся.
func (s *Service) correlate(ctx context.Context, event *gateway.Event) (*models.Subscription, error) {
	if event.Reference != "" {
		sub, err := s.repo.FindSubscriptionByReference(ctx, event.Reference)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	if event.ExternalID != "" {
		return s.repo.FindSubscriptionByExternalID(ctx, event.ExternalID)
	}
	return nil, nil
}

func (s *Service) applyPaymentSucceeded(ctx context.Context, sub *models.Subscription, event *gateway.Event) error {
	now := time.Now()
	inv := models.Invoice{
		UserUID:  sub.UserUID,
		Amount:   event.Amount,
		Currency: event.Currency,
		Status:   models.InvoicePaid,
		PaidAt:   &now,
	}
	if inv.Currency == "" {
		inv.Currency = "ZAR"
	}
	txn := models.Transaction{
		UserUID:     sub.UserUID,
		Gateway:     s.gw.Name(),
		ExternalID:  event.ExternalID,
		Status:      "succeeded",
		RawResponse: event.Raw,
	}
	if err := s.repo.ConfirmPayment(ctx, sub.ID, inv, txn); err != nil {
		return err
	}

	if user, err := s.repo.GetUserByUID(ctx, sub.UserUID); err == nil {
		s.publish(ctx, models.Notification{
			Type:     models.NotifyReceipt,
			Email:    user.Email,
			Name:     user.Name,
			PlanName: sub.PlanName,
			Amount:   inv.Amount,
		})
	}
	return nil
}

// invalidateCurrent сбрасывает кеш текущей подписки; ошибка кеша не фатальна.
func (s *Service) invalidateCurrent(userUID string) {
	if err := s.cache.Invalidate(currentKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
}

// publish отправляет уведомление в очередь; сбой очереди только логируется.
func (s *Service) publish(ctx context.Context, msg models.Notification) {
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.log.Error("failed to publish notification",
			slog.String("type", msg.Type), sl.Err(err))
	}
}

func auditToTransaction(userUID, gatewayName string, audit *gateway.AuditRecord) *models.Transaction {
	if audit == nil {
		return nil
	}
	return &models.Transaction{
		UserUID:     userUID,
		Gateway:     gatewayName,
		ExternalID:  audit.ExternalID,
		Status:      audit.Status,
		RawRequest:  audit.RawRequest,
		RawResponse: audit.RawResponse,
	}
}

// mapRemoteStatus переводит статус шлюза в локальный статус подписки.
func mapRemoteStatus(remote string) (models.SubscriptionStatus, bool) {
	switch strings.ToLower(remote) {
	case "active":
		return models.StatusActive, true
	case "past_due":
		return models.StatusPastDue, true
	case "canceled", "cancelled":
		return models.StatusCanceled, true
	case "incomplete", "incomplete_expired":
		return models.StatusIncomplete, true
	}
	return "", false
}
