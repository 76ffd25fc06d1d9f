package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

const maxBody = 64 << 10

func kindParam(r *http.Request) (subscription.Kind, bool) {
	k := subscription.Kind(chi.URLParam(r, "kind"))
	return k, k.Valid()
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	audience := r.URL.Query().Get("audience")
	if audience != "" && !subscription.Kind(audience).Valid() {
		writeError(w, http.StatusBadRequest, "invalid audience")
		return
	}
	plans, err := s.plans.List(r.Context(), audience)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.plans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !auth.CanActFor(r.Context(), req.SubscriberKind, req.SubscriberID) {
		writeError(w, http.StatusForbidden, "cannot act for subscriber")
		return
	}
	req.RemoteIP = remoteIP(r)

	resp, err := s.payments.Checkout(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscriber kind")
		return
	}
	subscriberID := chi.URLParam(r, "subscriberId")
	if !auth.CanActFor(r.Context(), string(kind), subscriberID) {
		writeError(w, http.StatusForbidden, "cannot act for subscriber")
		return
	}
	subs, err := s.subs.ListSubscriptions(r.Context(), kind, subscriberID)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, subscriptionResponse(&subs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) activeSubscription(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscriber kind")
		return
	}
	subscriberID := chi.URLParam(r, "subscriberId")
	if !auth.CanActFor(r.Context(), string(kind), subscriberID) {
		writeError(w, http.StatusForbidden, "cannot act for subscriber")
		return
	}
	s.writeActive(w, r, kind, subscriberID)
}

// internalActive: GET /internal/subscriptions/active?kind=user&subscriber_id=...
func (s *Server) internalActive(w http.ResponseWriter, r *http.Request) {
	kind := subscription.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = subscription.KindUser
	}
	subscriberID := r.URL.Query().Get("subscriber_id")
	if !kind.Valid() || subscriberID == "" {
		writeError(w, http.StatusBadRequest, "kind and subscriber_id required")
		return
	}
	s.writeActive(w, r, kind, subscriberID)
}

func (s *Server) writeActive(w http.ResponseWriter, r *http.Request, kind subscription.Kind, subscriberID string) {
	a, err := s.payments.ActiveSubscription(r.Context(), kind, subscriberID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// loadSubscription busca a assinatura e checa se o usuário pode operá-la
func (s *Server) loadSubscription(w http.ResponseWriter, r *http.Request) (*repo.Subscription, bool) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscriber kind")
		return nil, false
	}
	sub, err := s.subs.GetSubscription(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	if !auth.CanActFor(r.Context(), string(kind), sub.SubscriberID) {
		// não revela a existência da assinatura
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return sub, true
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.loadSubscription(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.loadSubscription(w, r)
	if !ok {
		return
	}
	out, err := s.payments.CancelSubscription(r.Context(), sub.Kind, sub.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(out))
}

// loadPayment busca a cobrança local e checa o dono pela assinatura
func (s *Server) loadPayment(w http.ResponseWriter, r *http.Request) (*repo.Payment, bool) {
	p, err := s.payments.Payment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	if s.ownsPayment(r.Context(), p) {
		return p, true
	}
	writeError(w, http.StatusNotFound, "not found")
	return nil, false
}

func (s *Server) ownsPayment(ctx context.Context, p *repo.Payment) bool {
	if auth.UserFrom(ctx).IsPrivileged() {
		return true
	}
	if p.SubscriptionID == "" {
		return false
	}
	sub, err := s.subs.GetSubscription(ctx, p.Kind, p.SubscriptionID)
	return err == nil && auth.CanActFor(ctx, string(p.Kind), sub.SubscriberID)
}

// CanWatchPayment é o filtro de inscrição do hub WebSocket
func (s *Server) CanWatchPayment(r *http.Request, paymentID string) bool {
	p, err := s.payments.Payment(r.Context(), paymentID)
	if err != nil {
		return false
	}
	return s.ownsPayment(r.Context(), p)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPayment(w, r)
	if !ok {
		return
	}
	out, err := s.payments.RefreshPayment(r.Context(), p)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPix(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPayment(w, r)
	if !ok {
		return
	}
	out, err := s.payments.Pix(r.Context(), p)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	if !auth.UserFrom(r.Context()).IsPrivileged() {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	p, ok := s.loadPayment(w, r)
	if !ok {
		return
	}
	var req dto.RefundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}
	out, err := s.payments.Refund(r.Context(), p, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func subscriptionResponse(s *repo.Subscription) dto.SubscriptionResponse {
	return dto.SubscriptionResponse{
		ID:             s.ID,
		SubscriberKind: string(s.Kind),
		SubscriberID:   s.SubscriberID,
		PlanID:         s.PlanID,
		Status:         string(s.Status),
		PaymentLinkURL: s.PaymentLinkURL,
		CheckoutURL:    s.CheckoutURL,
		CancelReason:   s.CancelReason,
		StartedAt:      s.StartedAt,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
