// Package checkin valida e registra check-ins em academias parceiras
package checkin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions"
	subdto "github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions/dto"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrAcademiaNotFound = errors.New("academia not found")
	ErrAcademiaInactive = errors.New("academia inactive")
	ErrNoSubscription   = errors.New("no active subscription")
	ErrNotEligible      = errors.New("plan does not cover this academia")
	ErrAlreadyCheckedIn = repo.ErrAlreadyCheckedIn
)

const (
	maxRange     = 366 * 24 * time.Hour
	userListSize = 100
)

type Store interface {
	GetAcademia(ctx context.Context, id string) (*repo.Academia, error)
	ActiveRule(ctx context.Context, academiaID string) (*repo.PayoutRule, error)
	MonthPayout(ctx context.Context, userID, academiaID string, day time.Time) (int64, error)
	InsertCheckin(ctx context.Context, c *repo.Checkin) error
	ListByAcademia(ctx context.Context, academiaID string, from, to time.Time) ([]repo.Checkin, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]repo.Checkin, error)
}

type Subscriptions interface {
	Active(ctx context.Context, kind, subscriberID string) (*subdto.ActiveSubscription, error)
}

type Publisher interface {
	PublishCheckin(ctx context.Context, e events.GymCheckin) error
}

type Service struct {
	log      *zap.Logger
	store    Store
	subs     Subscriptions
	pub      Publisher
	loc      *time.Location
	validate *validator.Validate
	now      func() time.Time

	OnCheckin  func(payoutCents int64)
	OnRejected func(reason string)
}

// NewService cria o serviço; loc define a virada do dia para a regra de um check-in diário
func NewService(log *zap.Logger, store Store, subs Subscriptions, pub Publisher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		log: log, store: store, subs: subs, pub: pub, loc: loc,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) Checkin(ctx context.Context, req dto.CheckinRequest) (*dto.CheckinResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	academia, err := s.store.GetAcademia(ctx, req.AcademiaID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, s.reject("academia", ErrAcademiaNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !academia.Ativo {
		return nil, s.reject("academia_inactive", ErrAcademiaInactive)
	}

	sub, err := s.subs.Active(ctx, "user", req.UserID)
	if errors.Is(err, subscriptions.ErrNoActive) {
		return nil, s.reject("subscription", ErrNoSubscription)
	}
	if err != nil {
		return nil, fmt.Errorf("active subscription: %w", err)
	}

	// plano sem categorias cobre qualquer academia
	if len(sub.CategoryIDs) > 0 {
		if !academia.CategoriaID.Valid || !slices.Contains(sub.CategoryIDs, academia.CategoriaID.String) {
			return nil, s.reject("category", ErrNotEligible)
		}
	}

	now := s.now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	payout, err := s.payout(ctx, req, sub.PriceCents, day)
	if err != nil {
		return nil, err
	}

	c := &repo.Checkin{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		AcademiaID:     req.AcademiaID,
		SubscriptionID: sub.SubscriptionID,
		PlanID:         sub.PlanID,
		PayoutCents:    payout,
		CheckedInAt:    now,
		CheckinDate:    day,
	}
	if err := s.store.InsertCheckin(ctx, c); err != nil {
		if errors.Is(err, repo.ErrAlreadyCheckedIn) {
			return nil, s.reject("duplicate", ErrAlreadyCheckedIn)
		}
		return nil, err
	}

	if s.pub != nil {
		if err := s.pub.PublishCheckin(ctx, events.GymCheckin{
			CheckinID:      c.ID,
			UserID:         c.UserID,
			AcademiaID:     c.AcademiaID,
			SubscriptionID: c.SubscriptionID,
			PlanID:         c.PlanID,
			PayoutCents:    c.PayoutCents,
			CheckedInAt:    c.CheckedInAt,
		}); err != nil {
			s.log.Warn("publish gym_checkin failed", zap.String("checkinId", c.ID), zap.Error(err))
		}
	}
	if s.OnCheckin != nil {
		s.OnCheckin(payout)
	}
	s.log.Info("checkin registered",
		zap.String("checkinId", c.ID),
		zap.String("userId", c.UserID),
		zap.String("academiaId", c.AcademiaID),
		zap.Int64("payoutCents", payout),
	)

	return &dto.CheckinResponse{
		CheckinID:      c.ID,
		UserID:         c.UserID,
		AcademiaID:     c.AcademiaID,
		SubscriptionID: c.SubscriptionID,
		PlanID:         c.PlanID,
		PayoutCents:    c.PayoutCents,
		CheckedInAt:    c.CheckedInAt,
	}, nil
}

func (s *Service) payout(ctx context.Context, req dto.CheckinRequest, priceCents int64, day time.Time) (int64, error) {
	rule, err := s.store.ActiveRule(ctx, req.AcademiaID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var month int64
	if rule.LimiteMensalCents > 0 {
		if month, err = s.store.MonthPayout(ctx, req.UserID, req.AcademiaID, day); err != nil {
			return 0, err
		}
	}
	return Payout(rule, priceCents, month), nil
}

// ByAcademia lista os check-ins de [from, to); sem datas usa os últimos 30 dias
func (s *Service) ByAcademia(ctx context.Context, academiaID string, from, to time.Time) ([]repo.Checkin, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) || to.Sub(from) > maxRange {
		return nil, fmt.Errorf("%w: invalid date range", ErrInvalidRequest)
	}
	return s.store.ListByAcademia(ctx, academiaID, from, to)
}

func (s *Service) ByUser(ctx context.Context, userID string) ([]repo.Checkin, error) {
	return s.store.ListByUser(ctx, userID, userListSize)
}

func (s *Service) reject(reason string, err error) error {
	if s.OnRejected != nil {
		s.OnRejected(reason)
	}
	return err
}
