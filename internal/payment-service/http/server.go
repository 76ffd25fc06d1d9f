package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/checkout"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
	"github.com/radieske/fitness-benefits-platform/internal/shared/ratelimit"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

type Plans interface {
	List(ctx context.Context, audience string) ([]repo.Plan, error)
	Get(ctx context.Context, id string) (*repo.Plan, error)
}

// Payments é o serviço de checkout/cobranças
type Payments interface {
	Checkout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	CancelSubscription(ctx context.Context, kind subscription.Kind, id string) (*repo.Subscription, error)
	ActiveSubscription(ctx context.Context, kind subscription.Kind, subscriberID string) (*dto.ActiveSubscriptionResponse, error)
	Payment(ctx context.Context, asaasID string) (*repo.Payment, error)
	RefreshPayment(ctx context.Context, local *repo.Payment) (*dto.PaymentResponse, error)
	Pix(ctx context.Context, local *repo.Payment) (*dto.PixResponse, error)
	Refund(ctx context.Context, local *repo.Payment, req dto.RefundRequest) (*dto.PaymentResponse, error)
}

type Subscriptions interface {
	GetSubscription(ctx context.Context, kind subscription.Kind, id string) (*repo.Subscription, error)
	ListSubscriptions(ctx context.Context, kind subscription.Kind, subscriberID string) ([]repo.Subscription, error)
}

// Server expõe a API HTTP do payment-service
type Server struct {
	log      *zap.Logger
	plans    Plans
	payments Payments
	subs     Subscriptions

	Webhook http.Handler     // POST /webhooks/asaas
	WS      http.HandlerFunc // GET /ws
	Auth    *auth.Middleware
	Limiter *ratelimit.Limiter
}

func NewServer(log *zap.Logger, plans Plans, payments Payments, subs Subscriptions) *Server {
	return &Server{log: log, plans: plans, payments: payments, subs: subs}
}

// Router retorna o roteador com as rotas públicas, autenticadas e internas
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if s.Webhook != nil {
		r.Method(http.MethodPost, "/webhooks/asaas", s.Webhook)
	}
	authn := s.Auth
	if authn == nil {
		authn = auth.NewMiddleware("")
	}

	if s.WS != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.QueryToken)
			r.Use(authn.Handler)
			r.Get("/ws", s.WS)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authn.Handler)
		if s.Limiter != nil {
			r.Use(s.Limiter.Handler)
		}

		r.Get("/v1/plans", s.listPlans)
		r.Get("/v1/plans/{id}", s.getPlan)

		r.Post("/v1/checkout", s.checkout)

		r.Get("/v1/subscribers/{kind}/{subscriberId}/subscriptions", s.listSubscriptions)
		r.Get("/v1/subscribers/{kind}/{subscriberId}/subscriptions/active", s.activeSubscription)
		r.Get("/v1/subscriptions/{kind}/{id}", s.getSubscription)
		r.Post("/v1/subscriptions/{kind}/{id}/cancel", s.cancelSubscription)

		r.Get("/v1/payments/{id}", s.getPayment)
		r.Get("/v1/payments/{id}/pix", s.getPix)
		r.Post("/v1/payments/{id}/refund", s.refund)
	})

	// consumido por outros serviços (checkin-service) com token service_role
	r.Group(func(r chi.Router) {
		r.Use(authn.Handler)
		r.Use(auth.RequirePrivileged)
		r.Get("/internal/subscriptions/active", s.internalActive)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// fail traduz erros de domínio em status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, checkout.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, checkout.ErrPlanInactive), errors.Is(err, checkout.ErrAudienceMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, subscription.ErrInvalidTransition),
		errors.Is(err, checkout.ErrNotRefundable),
		errors.Is(err, checkout.ErrNotPix):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrGateway):
		s.log.Warn("gateway error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
