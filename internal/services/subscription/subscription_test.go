package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coverplan/internal/gateway"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockRepo) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	plan, _ := args.Get(0).(*models.Plan)
	return plan, args.Error(1)
}

func (m *mockRepo) SaveGatewayCustomerID(ctx context.Context, uid, gatewayName, customerID string) error {
	return m.Called(ctx, uid, gatewayName, customerID).Error(0)
}

func (m *mockRepo) GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *mockRepo) FindSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	args := m.Called(ctx, reference)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *mockRepo) FindSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	args := m.Called(ctx, externalID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *mockRepo) CreateSubscriptionWithInvoice(ctx context.Context, sub models.Subscription,
	inv models.Invoice, txn *models.Transaction) (int, error) {
	args := m.Called(ctx, sub, inv, txn)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) ChangeSubscriptionPlan(ctx context.Context, subID, newPlanID int,
	inv *models.Invoice, txn *models.Transaction) error {
	return m.Called(ctx, subID, newPlanID, inv, txn).Error(0)
}

func (m *mockRepo) MarkCancelAtPeriodEnd(ctx context.Context, subID int) (int, error) {
	args := m.Called(ctx, subID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) UpdateSubscriptionStatus(ctx context.Context, subID int,
	status models.SubscriptionStatus, canceledAt *time.Time) error {
	return m.Called(ctx, subID, status, canceledAt).Error(0)
}

func (m *mockRepo) ConfirmPayment(ctx context.Context, subID int,
	inv models.Invoice, txn models.Transaction) error {
	return m.Called(ctx, subID, inv, txn).Error(0)
}

// fakeGateway — управляемая реализация шлюза для тестов машины состояний.
type fakeGateway struct {
	strict       bool
	createResult *gateway.CreateResult
	updateResult *gateway.UpdateResult
	updateErr    error
	cancelErr    error
	event        *gateway.Event
	parseErr     error

	createCalls int
	updateCalls int
	cancelCalls int
}

func (f *fakeGateway) Name() string           { return models.GatewayStripe }
func (f *fakeGateway) StrictDuplicates() bool { return f.strict }

func (f *fakeGateway) EnsureCustomer(_ context.Context, _ *models.User) (string, error) {
	return "cus_test", nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, _ *models.User,
	_ *models.Plan, _ string) (*gateway.CreateResult, error) {
	f.createCalls++
	return f.createResult, nil
}

func (f *fakeGateway) UpdateSubscription(_ context.Context, _ *models.User,
	_ *models.Subscription, _ *models.Plan, _ float64, _ string) (*gateway.UpdateResult, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateResult, nil
}

func (f *fakeGateway) CancelSubscription(_ context.Context, _ *models.Subscription) error {
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeGateway) ParseWebhook(_ []byte, _ string) (*gateway.Event, error) {
	return f.event, f.parseErr
}

type noopCache struct{}

func (noopCache) Get(string, any) (bool, error)        { return false, nil }
func (noopCache) Set(string, any, time.Duration) error { return nil }
func (noopCache) Invalidate(string) error              { return nil }

type recordingNotifier struct {
	published []models.Notification
	err       error
}

func (n *recordingNotifier) Publish(_ context.Context, msg models.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.published = append(n.published, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	testUser = &models.User{UID: "uid-1", Email: "user@example.com", Name: "Thabo"}

	planStandard = &models.Plan{ID: 2, Name: models.PlanStandard, Price: 149, Currency: "ZAR"}
	planPremium  = &models.Plan{ID: 3, Name: models.PlanPremium, Price: 249, Currency: "ZAR"}
)

func TestCreate(t *testing.T) {
	t.Run("новая подписка создает одну запись и один счет", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{
			strict: true,
			createResult: &gateway.CreateResult{
				ExternalID:      "sub_ext_1",
				Status:          models.StatusIncomplete,
				InvoiceStatus:   models.InvoicePending,
				RequiresPayment: true,
			},
		}
		notifier := &recordingNotifier{}
		svc := New(repo, gw, notifier, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(nil, nil)
		repo.On("SaveGatewayCustomerID", mock.Anything, "uid-1", models.GatewayStripe, "cus_test").Return(nil)
		repo.On("CreateSubscriptionWithInvoice", mock.Anything,
			mock.MatchedBy(func(sub models.Subscription) bool {
				return sub.Status == models.StatusIncomplete &&
					strings.HasPrefix(sub.Reference, "sub_uid-1_")
			}),
			mock.MatchedBy(func(inv models.Invoice) bool {
				return inv.Amount == 149 && inv.Status == models.InvoicePending
			}),
			(*models.Transaction)(nil)).Return(7, nil)

		out, err := svc.Create(t.Context(), "uid-1", models.PlanStandard)
		require.NoError(t, err)

		assert.Equal(t, 7, out.Subscription.ID)
		assert.True(t, out.RequiresPayment)
		assert.Equal(t, 1, gw.createCalls)
		repo.AssertExpectations(t)

		require.Len(t, notifier.published, 1)
		assert.Equal(t, models.NotifyWelcome, notifier.published[0].Type)
	})

	t.Run("строгий шлюз отвергает дубликат того же тарифа", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{strict: true}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		existing := &models.Subscription{ID: 1, PlanName: models.PlanStandard, Status: models.StatusActive}
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing, nil)

		_, err := svc.Create(t.Context(), "uid-1", models.PlanStandard)
		require.ErrorIs(t, err, ErrAlreadySubscribed)
		assert.Zero(t, gw.createCalls)
	})

	t.Run("мягкий шлюз идемпотентно возвращает существующую запись", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{strict: false}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		existing := &models.Subscription{ID: 1, PlanName: models.PlanStandard, Status: models.StatusActive}
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing, nil)

		out, err := svc.Create(t.Context(), "uid-1", models.PlanStandard)
		require.NoError(t, err)
		assert.Same(t, existing, out.Subscription)
		assert.False(t, out.RequiresPayment)
		assert.Zero(t, gw.createCalls)
	})

	t.Run("другой тариф при живой подписке делегируется смене тарифа", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{
			strict:       true,
			updateResult: &gateway.UpdateResult{InvoiceStatus: models.InvoicePending},
		}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		existing := &models.Subscription{ID: 1, PlanID: 2, PlanName: models.PlanStandard,
			Status: models.StatusActive, Reference: "sub_uid-1_100"}
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing, nil)
		repo.On("ChangeSubscriptionPlan", mock.Anything, 1, 3, mock.Anything, mock.Anything).Return(nil)

		out, err := svc.Create(t.Context(), "uid-1", models.PlanPremium)
		require.NoError(t, err)
		assert.Equal(t, models.PlanPremium, out.Subscription.PlanName)
		assert.Zero(t, gw.createCalls)
		assert.Equal(t, 1, gw.updateCalls)
	})

	t.Run("неизвестный тариф", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, "Platinum").
			Return(nil, fmt.Errorf("storage.GetPlanByName: %w", sql.ErrNoRows))

		_, err := svc.Create(t.Context(), "uid-1", "Platinum")
		require.ErrorIs(t, err, ErrPlanNotFound)
	})
}

func TestUpdate(t *testing.T) {
	existing := func() *models.Subscription {
		return &models.Subscription{ID: 1, PlanID: 2, PlanName: models.PlanStandard,
			Status: models.StatusActive, Reference: "sub_uid-1_100"}
	}

	t.Run("апгрейд выставляет счет на разницу цен", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{updateResult: &gateway.UpdateResult{InvoiceStatus: models.InvoicePending}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)
		repo.On("ChangeSubscriptionPlan", mock.Anything, 1, 3,
			mock.MatchedBy(func(inv *models.Invoice) bool {
				return inv != nil && inv.Amount == 100 && inv.Status == models.InvoicePending
			}),
			(*models.Transaction)(nil)).Return(nil)

		out, err := svc.Update(t.Context(), "uid-1", models.PlanPremium)
		require.NoError(t, err)
		assert.Equal(t, models.PlanPremium, out.Subscription.PlanName)
		repo.AssertExpectations(t)
	})

	t.Run("даунгрейд бесплатен, счет не создается", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{updateResult: &gateway.UpdateResult{InvoiceStatus: models.InvoicePaid}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		current := &models.Subscription{ID: 1, PlanID: 3, PlanName: models.PlanPremium,
			Status: models.StatusActive, Reference: "sub_uid-1_100"}
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(current, nil)
		repo.On("ChangeSubscriptionPlan", mock.Anything, 1, 2,
			(*models.Invoice)(nil), (*models.Transaction)(nil)).Return(nil)

		out, err := svc.Update(t.Context(), "uid-1", models.PlanStandard)
		require.NoError(t, err)
		assert.False(t, out.RequiresPayment)
		repo.AssertExpectations(t)
	})

	t.Run("исчезнувшая на стороне шлюза подписка отменяется и пересоздается", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{
			strict:    true,
			updateErr: fmt.Errorf("stripegw.UpdateSubscription: %w", gateway.ErrRemoteGone),
			createResult: &gateway.CreateResult{
				ExternalID:      "sub_ext_2",
				Status:          models.StatusIncomplete,
				InvoiceStatus:   models.InvoicePending,
				RequiresPayment: true,
			},
		}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		user := &models.User{UID: "uid-1", Email: "user@example.com", Name: "Thabo"}
		canceled := &models.Subscription{ID: 1, PlanID: 2, PlanName: models.PlanStandard,
			Status: models.StatusCanceled, Reference: "sub_uid-1_100"}

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(user, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil).Once()
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(canceled, nil)
		repo.On("UpdateSubscriptionStatus", mock.Anything, 1, models.StatusCanceled,
			mock.AnythingOfType("*time.Time")).Return(nil)
		repo.On("SaveGatewayCustomerID", mock.Anything, "uid-1", models.GatewayStripe, "cus_test").Return(nil)
		repo.On("CreateSubscriptionWithInvoice", mock.Anything,
			mock.MatchedBy(func(sub models.Subscription) bool {
				return sub.PlanID == 3 && sub.Status == models.StatusIncomplete
			}),
			mock.MatchedBy(func(inv models.Invoice) bool {
				return inv.Amount == 249 && inv.Status == models.InvoicePending
			}),
			(*models.Transaction)(nil)).Return(9, nil)

		out, err := svc.Update(t.Context(), "uid-1", models.PlanPremium)
		require.NoError(t, err)

		assert.Equal(t, 9, out.Subscription.ID)
		assert.Equal(t, 1, gw.updateCalls)
		assert.Equal(t, 1, gw.createCalls)
		repo.AssertNotCalled(t, "ChangeSubscriptionPlan",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("другая ошибка шлюза останавливает смену тарифа", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{updateErr: errors.New("gateway down")}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)

		_, err := svc.Update(t.Context(), "uid-1", models.PlanPremium)
		require.Error(t, err)
		repo.AssertNotCalled(t, "ChangeSubscriptionPlan",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateSubscriptionStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("смена на тот же тариф отвергается", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)

		_, err := svc.Update(t.Context(), "uid-1", models.PlanStandard)
		require.ErrorIs(t, err, ErrAlreadySubscribed)
	})

	t.Run("без подписки менять нечего", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
		repo.On("GetPlanByName", mock.Anything, models.PlanPremium).Return(planPremium, nil)
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(nil, nil)

		_, err := svc.Update(t.Context(), "uid-1", models.PlanPremium)
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestCancel(t *testing.T) {
	existing := func() *models.Subscription {
		return &models.Subscription{ID: 1, PlanName: models.PlanStandard,
			Status: models.StatusActive, Reference: "sub_uid-1_100"}
	}

	t.Run("отмена помечает запись, не меняя статус", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{}
		notifier := &recordingNotifier{}
		svc := New(repo, gw, notifier, noopCache{}, discardLogger())

		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)
		repo.On("MarkCancelAtPeriodEnd", mock.Anything, 1).Return(1, nil)
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)

		sub, err := svc.Cancel(t.Context(), "uid-1")
		require.NoError(t, err)

		assert.True(t, sub.CancelAtPeriodEnd)
		assert.Equal(t, models.StatusActive, sub.Status)
		assert.Equal(t, 1, gw.cancelCalls)
		repo.AssertNotCalled(t, "UpdateSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		require.Len(t, notifier.published, 1)
		assert.Equal(t, models.NotifyCancellation, notifier.published[0].Type)
	})

	t.Run("исчезнувшая на стороне шлюза подписка отменяется локально", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{cancelErr: gateway.ErrRemoteGone}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)
		repo.On("MarkCancelAtPeriodEnd", mock.Anything, 1).Return(1, nil)
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)

		sub, err := svc.Cancel(t.Context(), "uid-1")
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
	})

	t.Run("другая ошибка шлюза останавливает отмену", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{cancelErr: errors.New("gateway down")}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing(), nil)

		_, err := svc.Cancel(t.Context(), "uid-1")
		require.Error(t, err)
		repo.AssertNotCalled(t, "MarkCancelAtPeriodEnd", mock.Anything, mock.Anything)
	})

	t.Run("отменять нечего", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(nil, nil)

		_, err := svc.Cancel(t.Context(), "uid-1")
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestHandleWebhook(t *testing.T) {
	existing := func() *models.Subscription {
		return &models.Subscription{ID: 1, UserUID: "uid-1", PlanName: models.PlanStandard,
			Status: models.StatusIncomplete, Reference: "sub_uid-1_100"}
	}

	t.Run("подтвержденный платеж активирует подписку", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{event: &gateway.Event{
			Type:      gateway.EventPaymentSucceeded,
			Reference: "sub_uid-1_100",
			Amount:    149,
			Currency:  "ZAR",
		}}
		notifier := &recordingNotifier{}
		svc := New(repo, gw, notifier, noopCache{}, discardLogger())

		repo.On("FindSubscriptionByReference", mock.Anything, "sub_uid-1_100").Return(existing(), nil)
		repo.On("ConfirmPayment", mock.Anything, 1,
			mock.MatchedBy(func(inv models.Invoice) bool {
				return inv.Amount == 149 && inv.Status == models.InvoicePaid && inv.PaidAt != nil
			}),
			mock.Anything).Return(nil)
		repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)

		require.NoError(t, svc.HandleWebhook(t.Context(), []byte("{}"), "sig"))
		repo.AssertExpectations(t)

		require.Len(t, notifier.published, 1)
		assert.Equal(t, models.NotifyReceipt, notifier.published[0].Type)
	})

	t.Run("неуспешный платеж переводит в PAST_DUE", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{event: &gateway.Event{
			Type:      gateway.EventPaymentFailed,
			Reference: "sub_uid-1_100",
		}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("FindSubscriptionByReference", mock.Anything, "sub_uid-1_100").Return(existing(), nil)
		repo.On("UpdateSubscriptionStatus", mock.Anything, 1, models.StatusPastDue,
			(*time.Time)(nil)).Return(nil)

		require.NoError(t, svc.HandleWebhook(t.Context(), []byte("{}"), "sig"))
		repo.AssertExpectations(t)
	})

	t.Run("неизвестная ссылка ничего не мутирует", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{event: &gateway.Event{
			Type:      gateway.EventPaymentSucceeded,
			Reference: "sub_stranger_1",
		}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("FindSubscriptionByReference", mock.Anything, "sub_stranger_1").Return(nil, nil)

		require.NoError(t, svc.HandleWebhook(t.Context(), []byte("{}"), "sig"))
		repo.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("корреляция по внешнему идентификатору", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{event: &gateway.Event{
			Type:       gateway.EventSubscriptionDeleted,
			ExternalID: "sub_ext_1",
		}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("FindSubscriptionByExternalID", mock.Anything, "sub_ext_1").Return(existing(), nil)
		repo.On("UpdateSubscriptionStatus", mock.Anything, 1, models.StatusCanceled,
			mock.AnythingOfType("*time.Time")).Return(nil)

		require.NoError(t, svc.HandleWebhook(t.Context(), []byte("{}"), "sig"))
		repo.AssertExpectations(t)
	})

	t.Run("невалидная подпись — ошибка без мутаций", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{parseErr: errors.New("bad signature")}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		require.Error(t, svc.HandleWebhook(t.Context(), []byte("{}"), "forged"))
		repo.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("нерелевантное событие игнорируется", func(t *testing.T) {
		repo := &mockRepo{}
		gw := &fakeGateway{event: &gateway.Event{Type: gateway.EventIgnored}}
		svc := New(repo, gw, &recordingNotifier{}, noopCache{}, discardLogger())

		require.NoError(t, svc.HandleWebhook(t.Context(), []byte("{}"), "sig"))
	})
}

func TestCurrent(t *testing.T) {
	t.Run("подписка есть", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		existing := &models.Subscription{ID: 1, PlanName: models.PlanStandard, Status: models.StatusActive}
		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(existing, nil)

		sub, err := svc.Current(t.Context(), "uid-1")
		require.NoError(t, err)
		assert.Same(t, existing, sub)
	})

	t.Run("подписки нет", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, &fakeGateway{}, &recordingNotifier{}, noopCache{}, discardLogger())

		repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(nil, nil)

		_, err := svc.Current(t.Context(), "uid-1")
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestNotifierFailureDoesNotBreakCreate(t *testing.T) {
	repo := &mockRepo{}
	gw := &fakeGateway{
		strict: true,
		createResult: &gateway.CreateResult{
			ExternalID:    "sub_ext_1",
			Status:        models.StatusIncomplete,
			InvoiceStatus: models.InvoicePending,
		},
	}
	svc := New(repo, gw, &recordingNotifier{err: errors.New("broker down")}, noopCache{}, discardLogger())

	repo.On("GetUserByUID", mock.Anything, "uid-1").Return(testUser, nil)
	repo.On("GetPlanByName", mock.Anything, models.PlanStandard).Return(planStandard, nil)
	repo.On("GetCurrentSubscription", mock.Anything, "uid-1").Return(nil, nil)
	repo.On("SaveGatewayCustomerID", mock.Anything, "uid-1", models.GatewayStripe, "cus_test").Return(nil)
	repo.On("CreateSubscriptionWithInvoice", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything).Return(7, nil)

	out, err := svc.Create(t.Context(), "uid-1", models.PlanStandard)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Subscription.ID)
}
