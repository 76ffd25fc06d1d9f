package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/cache"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

const (
	userID = "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
	planID = "0b7e9c2a-1f3d-4e5a-9b8c-7d6e5f4a3b2c"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	gw    *mockGateway
	plans *mockPlans
	store *mockStore
}

func newFixture(t *testing.T, c Cache) *fixture {
	t.Helper()
	f := &fixture{gw: &mockGateway{}, plans: &mockPlans{}, store: &mockStore{}}
	f.svc = NewService(zap.NewNop(), f.plans, f.store, f.gw, c, Options{
		DueDays:    3,
		SuccessURL: "https://app/ok",
		CancelURL:  "https://app/cancel",
		ExpiredURL: "https://app/expired",
	})
	f.svc.now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		f.gw.AssertExpectations(t)
		f.plans.AssertExpectations(t)
		f.store.AssertExpectations(t)
	})
	return f
}

func goldPlan() *repo.Plan {
	return &repo.Plan{ID: planID, Name: "Gold", PriceCents: 9990, BillingCycle: "MONTHLY", Audience: "user", Active: true}
}

func baseRequest(mode string) dto.CheckoutRequest {
	return dto.CheckoutRequest{
		SubscriberKind: "user",
		SubscriberID:   userID,
		PlanID:         planID,
		Mode:           mode,
		Customer:       dto.CustomerData{Name: "Ana Souza", CpfCnpj: "123.456.789-09", Email: "ana@example.com"},
	}
}

func knownCustomer() *repo.Customer {
	return &repo.Customer{ID: "c1", Kind: subscription.KindUser, SubscriberID: userID, AsaasID: "cus_1"}
}

func TestCheckout_PixPayment(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(dto.ModePayment)
	req.BillingType = "PIX"

	f.plans.On("GetPlan", mock.Anything, planID).Return(goldPlan(), nil)
	f.store.On("GetCustomerBySubscriber", mock.Anything, subscription.KindUser, userID).Return(knownCustomer(), nil)
	f.store.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(s *repo.Subscription) bool {
		return s.Status == subscription.StatusPending && s.AsaasCustomerID == "cus_1" && s.PlanID == planID
	})).Return(nil)
	f.gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(r asaas.PaymentRequest) bool {
		return r.Customer == "cus_1" && r.BillingType == asaas.BillingPix && r.Value == 99.90 &&
			r.DueDate == "2026-03-13" && r.ExternalReference != ""
	})).Return(&asaas.Payment{ID: "pay_1", Status: "PENDING", BillingType: asaas.BillingPix, Value: 99.90, DueDate: "2026-03-13"}, nil)
	f.store.On("InsertPayment", mock.Anything, mock.MatchedBy(func(p *repo.Payment) bool {
		return p.AsaasID == "pay_1" && p.ValueCents == 9990 && p.DueDate != nil
	})).Return(nil)
	f.gw.On("GetPixQrCode", mock.Anything, "pay_1").Return(&asaas.PixQrCode{EncodedImage: "img", Payload: "000201"}, nil)

	resp, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "pay_1", resp.Payment.ID)
	require.NotNil(t, resp.Payment.Pix)
	assert.Equal(t, "000201", resp.Payment.Pix.Payload)
}

func TestCheckout_LinkReusesCustomerFoundByDocument(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(dto.ModeLink)

	f.plans.On("GetPlan", mock.Anything, planID).Return(goldPlan(), nil)
	f.store.On("GetCustomerBySubscriber", mock.Anything, subscription.KindUser, userID).Return(nil, repo.ErrNotFound)
	f.gw.On("FindCustomers", mock.Anything, "12345678909", "").Return([]asaas.Customer{{ID: "cus_old"}}, nil)
	f.store.On("SaveCustomer", mock.Anything, mock.MatchedBy(func(c *repo.Customer) bool {
		return c.AsaasID == "cus_old" && c.CpfCnpj == "12345678909"
	})).Return(&repo.Customer{ID: "c9", AsaasID: "cus_old"}, nil)
	f.store.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil)
	f.gw.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(r asaas.PaymentLinkRequest) bool {
		return r.BillingType == asaas.BillingUndefined && r.ChargeType == asaas.ChargeDetached && r.DueDateLimitDays == 3
	})).Return(&asaas.PaymentLink{ID: "pl_1", URL: "https://asaas/c/pl_1"}, nil)
	f.store.On("SetGatewayRefs", mock.Anything, subscription.KindUser, mock.Anything,
		repo.GatewayRefs{PaymentLinkID: "pl_1", PaymentLinkURL: "https://asaas/c/pl_1"}).Return(nil)

	resp, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://asaas/c/pl_1", resp.URL)
	f.gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestCheckout_HostedCheckoutCreatesCustomer(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(dto.ModeCheckout)

	f.plans.On("GetPlan", mock.Anything, planID).Return(goldPlan(), nil)
	f.store.On("GetCustomerBySubscriber", mock.Anything, subscription.KindUser, userID).Return(nil, repo.ErrNotFound)
	f.gw.On("FindCustomers", mock.Anything, "12345678909", "").Return([]asaas.Customer{}, nil)
	f.gw.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(r asaas.CustomerRequest) bool {
		return r.ExternalReference == userID && r.NotificationDisabled
	})).Return(&asaas.Customer{ID: "cus_new"}, nil)
	f.store.On("SaveCustomer", mock.Anything, mock.Anything).Return(&repo.Customer{AsaasID: "cus_new"}, nil)
	f.store.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil)
	f.gw.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(r asaas.CheckoutRequest) bool {
		return r.Customer == "cus_new" && r.Callback.SuccessURL == "https://app/ok" &&
			len(r.Items) == 1 && r.Items[0].Value == 99.90 && r.MinutesToExpire == 60
	})).Return(&asaas.Checkout{ID: "chk_1", Link: "https://asaas/checkout/chk_1"}, nil)
	f.store.On("SetGatewayRefs", mock.Anything, subscription.KindUser, mock.Anything,
		repo.GatewayRefs{CheckoutID: "chk_1", CheckoutURL: "https://asaas/checkout/chk_1"}).Return(nil)

	resp, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://asaas/checkout/chk_1", resp.URL)
	assert.Equal(t, dto.ModeCheckout, resp.Mode)
}

func TestCheckout_GatewayFailureCancelsSubscription(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(dto.ModePayment)
	req.BillingType = "BOLETO"
	compensated := 0
	f.svc.OnCompensation = func() { compensated++ }

	f.plans.On("GetPlan", mock.Anything, planID).Return(goldPlan(), nil)
	f.store.On("GetCustomerBySubscriber", mock.Anything, subscription.KindUser, userID).Return(knownCustomer(), nil)
	f.store.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil)
	f.gw.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, &asaas.APIError{StatusCode: 400})
	f.store.On("CancelSubscription", mock.Anything, subscription.KindUser, mock.Anything, subscription.ReasonGatewayError).
		Return(subscription.StatusPending, nil)

	_, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, 1, compensated)
}

func TestCheckout_OrphanPaymentIsDeletedWhenPersistFails(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(dto.ModePayment)
	req.BillingType = "BOLETO"

	f.plans.On("GetPlan", mock.Anything, planID).Return(goldPlan(), nil)
	f.store.On("GetCustomerBySubscriber", mock.Anything, subscription.KindUser, userID).Return(knownCustomer(), nil)
	f.store.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil)
	f.gw.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&asaas.Payment{ID: "pay_2", Status: "PENDING", BillingType: asaas.BillingBoleto, Value: 99.90}, nil)
	f.store.On("InsertPayment", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.gw.On("DeletePayment", mock.Anything, "pay_2").Return(nil)
	f.store.On("CancelSubscription", mock.Anything, subscription.KindUser, mock.Anything, subscription.ReasonGatewayError).
		Return(subscription.StatusPending, nil)

	_, err := f.svc.Checkout(context.Background(), req)
	assert.Error(t, err)
}

func TestCheckout_Rejections(t *testing.T) {
	t.Run("invalid payload", func(t *testing.T) {
		f := newFixture(t, nil)
		req := baseRequest(dto.ModePayment)
		req.SubscriberID = "not-a-uuid"
		_, err := f.svc.Checkout(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("document with neither CPF nor CNPJ length", func(t *testing.T) {
		for _, doc := range []string{"123456789012", "1234567890123", "1234567890"} {
			f := newFixture(t, nil)
			req := baseRequest(dto.ModeLink)
			req.Customer.CpfCnpj = doc
			_, err := f.svc.Checkout(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest, doc)
		}
	})

	t.Run("CNPJ length passes validation", func(t *testing.T) {
		f := newFixture(t, nil)
		p := goldPlan()
		p.Audience = "business"
		f.plans.On("GetPlan", mock.Anything, planID).Return(p, nil)
		req := baseRequest(dto.ModeLink)
		req.Customer.CpfCnpj = "11.222.333/0001-81"
		_, err := f.svc.Checkout(context.Background(), req)
		assert.ErrorIs(t, err, ErrAudienceMismatch, "CNPJ de 14 dígitos passa na validação")
	})

	t.Run("payment without billing type", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Checkout(context.Background(), baseRequest(dto.ModePayment))
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("credit card without card data", func(t *testing.T) {
		f := newFixture(t, nil)
		req := baseRequest(dto.ModePayment)
		req.BillingType = "CREDIT_CARD"
		_, err := f.svc.Checkout(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("inactive plan", func(t *testing.T) {
		f := newFixture(t, nil)
		p := goldPlan()
		p.Active = false
		f.plans.On("GetPlan", mock.Anything, planID).Return(p, nil)
		_, err := f.svc.Checkout(context.Background(), baseRequest(dto.ModeLink))
		assert.ErrorIs(t, err, ErrPlanInactive)
	})

	t.Run("business plan for user", func(t *testing.T) {
		f := newFixture(t, nil)
		p := goldPlan()
		p.Audience = "business"
		f.plans.On("GetPlan", mock.Anything, planID).Return(p, nil)
		_, err := f.svc.Checkout(context.Background(), baseRequest(dto.ModeLink))
		assert.ErrorIs(t, err, ErrAudienceMismatch)
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture(t, nil)
		f.plans.On("GetPlan", mock.Anything, planID).Return(nil, repo.ErrNotFound)
		_, err := f.svc.Checkout(context.Background(), baseRequest(dto.ModeLink))
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})
}

func TestCancelSubscription_DeletesOpenPayments(t *testing.T) {
	f := newFixture(t, nil)
	sub := &repo.Subscription{ID: "sub-1", Kind: subscription.KindUser, SubscriberID: userID, Status: subscription.StatusPending}
	cancelled := *sub
	cancelled.Status = subscription.StatusCancelled

	f.store.On("GetSubscription", mock.Anything, subscription.KindUser, "sub-1").Return(sub, nil).Once()
	f.store.On("CancelSubscription", mock.Anything, subscription.KindUser, "sub-1", subscription.ReasonUserRequest).
		Return(subscription.StatusPending, nil)
	f.store.On("OpenPayments", mock.Anything, "sub-1").Return([]repo.Payment{{AsaasID: "pay_a"}, {AsaasID: "pay_b"}}, nil)
	f.gw.On("DeletePayment", mock.Anything, "pay_a").Return(nil)
	f.gw.On("DeletePayment", mock.Anything, "pay_b").Return(asaas.ErrNotFound)
	f.store.On("GetSubscription", mock.Anything, subscription.KindUser, "sub-1").Return(&cancelled, nil).Once()

	out, err := f.svc.CancelSubscription(context.Background(), subscription.KindUser, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, out.Status)
}

func TestRefund(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Refund(context.Background(), &repo.Payment{AsaasID: "pay_1", Status: "PENDING"}, dto.RefundRequest{})
	assert.ErrorIs(t, err, ErrNotRefundable)

	received := &repo.Payment{AsaasID: "pay_1", Status: "RECEIVED", ValueCents: 9990}
	_, err = f.svc.Refund(context.Background(), received, dto.RefundRequest{ValueCents: 10000})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	f.gw.On("RefundPayment", mock.Anything, "pay_1", asaas.RefundRequest{Value: 50}).
		Return(&asaas.Payment{ID: "pay_1", Status: "REFUND_REQUESTED"}, nil)
	out, err := f.svc.Refund(context.Background(), received, dto.RefundRequest{ValueCents: 5000})
	require.NoError(t, err)
	assert.Equal(t, "REFUND_REQUESTED", out.Status)
}

func TestPix_RejectsNonPix(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Pix(context.Background(), &repo.Payment{AsaasID: "pay_1", BillingType: "BOLETO"})
	assert.ErrorIs(t, err, ErrNotPix)
}

func TestActiveSubscription_IsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(t, cache.NewJSON(rdb))

	expires := fixedNow.AddDate(0, 1, 0)
	f.store.On("ActiveSubscription", mock.Anything, subscription.KindUser, userID).
		Return(&repo.ActiveSubscription{
			SubscriptionID: "sub-1", Kind: subscription.KindUser, SubscriberID: userID,
			PlanID: planID, PriceCents: 9990, CategoryIDs: []string{"cat-a"}, ExpiresAt: &expires,
		}, nil).Once()

	first, err := f.svc.ActiveSubscription(context.Background(), subscription.KindUser, userID)
	require.NoError(t, err)
	second, err := f.svc.ActiveSubscription(context.Background(), subscription.KindUser, userID)
	require.NoError(t, err)

	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
	assert.Equal(t, []string{"cat-a"}, second.CategoryIDs)
	assert.True(t, mr.Exists(subscription.ActiveCacheKey(subscription.KindUser, userID)))
}

func TestActiveSubscription_MissIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(t, cache.NewJSON(rdb))

	f.store.On("ActiveSubscription", mock.Anything, subscription.KindUser, userID).Return(nil, repo.ErrNotFound)

	_, err := f.svc.ActiveSubscription(context.Background(), subscription.KindUser, userID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.False(t, mr.Exists(subscription.ActiveCacheKey(subscription.KindUser, userID)))
}
