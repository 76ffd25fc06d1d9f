package checkout

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateCustomer(ctx context.Context, req asaas.CustomerRequest) (*asaas.Customer, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*asaas.Customer)
	return c, args.Error(1)
}

func (m *mockGateway) FindCustomers(ctx context.Context, cpfCnpj, email string) ([]asaas.Customer, error) {
	args := m.Called(ctx, cpfCnpj, email)
	c, _ := args.Get(0).([]asaas.Customer)
	return c, args.Error(1)
}

func (m *mockGateway) CreatePayment(ctx context.Context, req asaas.PaymentRequest) (*asaas.Payment, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*asaas.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) GetPayment(ctx context.Context, id string) (*asaas.Payment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*asaas.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) GetPixQrCode(ctx context.Context, paymentID string) (*asaas.PixQrCode, error) {
	args := m.Called(ctx, paymentID)
	q, _ := args.Get(0).(*asaas.PixQrCode)
	return q, args.Error(1)
}

func (m *mockGateway) DeletePayment(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockGateway) RefundPayment(ctx context.Context, id string, req asaas.RefundRequest) (*asaas.Payment, error) {
	args := m.Called(ctx, id, req)
	p, _ := args.Get(0).(*asaas.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLink, error) {
	args := m.Called(ctx, req)
	l, _ := args.Get(0).(*asaas.PaymentLink)
	return l, args.Error(1)
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req asaas.CheckoutRequest) (*asaas.Checkout, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*asaas.Checkout)
	return c, args.Error(1)
}

type mockPlans struct{ mock.Mock }

func (m *mockPlans) GetPlan(ctx context.Context, id string) (*repo.Plan, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*repo.Plan)
	return p, args.Error(1)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) GetCustomerBySubscriber(ctx context.Context, kind subscription.Kind, subscriberID string) (*repo.Customer, error) {
	args := m.Called(ctx, kind, subscriberID)
	c, _ := args.Get(0).(*repo.Customer)
	return c, args.Error(1)
}

func (m *mockStore) SaveCustomer(ctx context.Context, c *repo.Customer) (*repo.Customer, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(*repo.Customer)
	return out, args.Error(1)
}

func (m *mockStore) CreateSubscription(ctx context.Context, s *repo.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) GetSubscription(ctx context.Context, kind subscription.Kind, id string) (*repo.Subscription, error) {
	args := m.Called(ctx, kind, id)
	s, _ := args.Get(0).(*repo.Subscription)
	return s, args.Error(1)
}

func (m *mockStore) SetGatewayRefs(ctx context.Context, kind subscription.Kind, id string, refs repo.GatewayRefs) error {
	return m.Called(ctx, kind, id, refs).Error(0)
}

func (m *mockStore) CancelSubscription(ctx context.Context, kind subscription.Kind, id, reason string) (subscription.Status, error) {
	args := m.Called(ctx, kind, id, reason)
	return args.Get(0).(subscription.Status), args.Error(1)
}

func (m *mockStore) ActiveSubscription(ctx context.Context, kind subscription.Kind, subscriberID string) (*repo.ActiveSubscription, error) {
	args := m.Called(ctx, kind, subscriberID)
	a, _ := args.Get(0).(*repo.ActiveSubscription)
	return a, args.Error(1)
}

func (m *mockStore) InsertPayment(ctx context.Context, p *repo.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockStore) GetPaymentByAsaasID(ctx context.Context, asaasID string) (*repo.Payment, error) {
	args := m.Called(ctx, asaasID)
	p, _ := args.Get(0).(*repo.Payment)
	return p, args.Error(1)
}

func (m *mockStore) OpenPayments(ctx context.Context, subscriptionID string) ([]repo.Payment, error) {
	args := m.Called(ctx, subscriptionID)
	p, _ := args.Get(0).([]repo.Payment)
	return p, args.Error(1)
}
