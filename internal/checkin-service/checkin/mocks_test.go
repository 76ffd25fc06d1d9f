package checkin

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"
	subdto "github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions/dto"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) GetAcademia(ctx context.Context, id string) (*repo.Academia, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*repo.Academia)
	return a, args.Error(1)
}

func (m *mockStore) ActiveRule(ctx context.Context, academiaID string) (*repo.PayoutRule, error) {
	args := m.Called(ctx, academiaID)
	r, _ := args.Get(0).(*repo.PayoutRule)
	return r, args.Error(1)
}

func (m *mockStore) MonthPayout(ctx context.Context, userID, academiaID string, day time.Time) (int64, error) {
	args := m.Called(ctx, userID, academiaID, day)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) InsertCheckin(ctx context.Context, c *repo.Checkin) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockStore) ListByAcademia(ctx context.Context, academiaID string, from, to time.Time) ([]repo.Checkin, error) {
	args := m.Called(ctx, academiaID, from, to)
	l, _ := args.Get(0).([]repo.Checkin)
	return l, args.Error(1)
}

func (m *mockStore) ListByUser(ctx context.Context, userID string, limit int) ([]repo.Checkin, error) {
	args := m.Called(ctx, userID, limit)
	l, _ := args.Get(0).([]repo.Checkin)
	return l, args.Error(1)
}

type mockSubs struct{ mock.Mock }

func (m *mockSubs) Active(ctx context.Context, kind, subscriberID string) (*subdto.ActiveSubscription, error) {
	args := m.Called(ctx, kind, subscriberID)
	a, _ := args.Get(0).(*subdto.ActiveSubscription)
	return a, args.Error(1)
}

type fakePublisher struct {
	events []events.GymCheckin
	err    error
}

func (f *fakePublisher) PublishCheckin(_ context.Context, e events.GymCheckin) error {
	f.events = append(f.events, e)
	return f.err
}
