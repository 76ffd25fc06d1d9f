package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	simdto "github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/dto"
	"github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/store"
	"github.com/radieske/fitness-benefits-platform/internal/asaas-simulator/webhook"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/internal/shared/subscription"
)

// APIPrefix é o caminho base equivalente ao da API v3 do Asaas
const APIPrefix = "/api/v3"

type Sender interface {
	Send(ctx context.Context, ev asaas.WebhookEvent) error
}

// Server imita os endpoints do Asaas usados pelo payment-service
type Server struct {
	log     *zap.Logger
	store   *store.Memory
	sender  Sender // nil = não envia webhooks
	apiKey  string
	baseURL string

	// async controla o envio dos webhooks disparados pela própria API
	async bool
}

func NewServer(log *zap.Logger, st *store.Memory, sender Sender, apiKey, publicURL string) *Server {
	return &Server{log: log, store: st, sender: sender, apiKey: apiKey, baseURL: strings.TrimRight(publicURL, "/"), async: true}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(s.requireKey)
		r.Post("/customers", s.createCustomer)
		r.Get("/customers", s.listCustomers)
		r.Post("/payments", s.createPayment)
		r.Get("/payments/{id}", s.getPayment)
		r.Get("/payments/{id}/pixQrCode", s.pixQrCode)
		r.Delete("/payments/{id}", s.deletePayment)
		r.Post("/payments/{id}/refund", s.refund)
		r.Post("/paymentLinks", s.createLink)
		r.Post("/checkouts", s.createCheckout)
	})

	// controles do simulador: mudam estado e disparam o webhook
	r.Route("/simulator", func(r chi.Router) {
		r.Post("/payments/{id}/confirm", s.confirm)
		r.Post("/payments/{id}/overdue", s.overdue)
		r.Post("/paymentLinks/{id}/pay", s.payLink)
		r.Post("/checkouts/{id}/pay", s.payCheckout)
	})
	return r
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("access_token") != s.apiKey {
			apiError(w, http.StatusUnauthorized, "invalid_access_token", "A chave de API fornecida é inválida")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req asaas.CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.CpfCnpj == "" {
		apiError(w, http.StatusBadRequest, "invalid_object", "name e cpfCnpj são obrigatórios")
		return
	}
	writeJSON(w, http.StatusOK, s.store.CreateCustomer(req))
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.store.FindCustomers(q.Get("cpfCnpj"), q.Get("email"))
	writeJSON(w, http.StatusOK, asaas.List[asaas.Customer]{
		Object: "list", TotalCount: len(data), Limit: 10, Data: data,
	})
}

// número terminado em 0002 simula cartão recusado
func refusedCard(c *asaas.CreditCard) bool {
	return c != nil && strings.HasSuffix(c.Number, "0002")
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req asaas.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	switch {
	case !s.store.HasCustomer(req.Customer):
		apiError(w, http.StatusBadRequest, "invalid_customer", "Cliente inexistente")
		return
	case req.Value <= 0:
		apiError(w, http.StatusBadRequest, "invalid_value", "O valor deve ser maior que zero")
		return
	case !req.BillingType.Valid():
		apiError(w, http.StatusBadRequest, "invalid_billingType", "Forma de pagamento inválida")
		return
	case req.BillingType == asaas.BillingCreditCard && refusedCard(req.CreditCard):
		apiError(w, http.StatusBadRequest, "invalid_creditCard", "Transação não autorizada")
		return
	}

	p := s.store.CreatePayment(req, s.baseURL)
	s.log.Info("payment created",
		zap.String("paymentId", p.ID),
		zap.String("billingType", string(p.BillingType)),
		zap.String("status", p.Status),
	)
	if p.Status == asaas.PaymentConfirmed {
		s.fire(r.Context(), subscription.EventPaymentConfirmed, &p, nil)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPayment(chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) pixQrCode(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPayment(chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	if p.BillingType != asaas.BillingPix && p.BillingType != asaas.BillingUndefined {
		apiError(w, http.StatusBadRequest, "invalid_action", "Cobrança não é PIX")
		return
	}
	payload := "00020101021226820014br.gov.bcb.pix2560sim.asaas/" + p.ID + "5204000053039865802BR6304SIMU"
	writeJSON(w, http.StatusOK, asaas.PixQrCode{
		EncodedImage:   base64.StdEncoding.EncodeToString([]byte("sim-qrcode:" + p.ID)),
		Payload:        payload,
		ExpirationDate: p.DueDate + " 23:59:59",
	})
}

func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeletePayment(id); err != nil {
		storeError(w, err)
		return
	}
	if p, err := s.store.GetPayment(id); err == nil {
		s.fire(r.Context(), subscription.EventPaymentDeleted, &p, nil)
	}
	writeJSON(w, http.StatusOK, asaas.DeleteResponse{Deleted: true, ID: id})
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req asaas.RefundRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	p, partial, err := s.store.Refund(chi.URLParam(r, "id"), req.Value)
	if err != nil {
		storeError(w, err)
		return
	}
	event := subscription.EventPaymentRefunded
	if partial {
		event = subscription.EventPaymentPartiallyRefunded
	}
	s.fire(r.Context(), event, &p, nil)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createLink(w http.ResponseWriter, r *http.Request) {
	var req asaas.PaymentLinkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Value <= 0 {
		apiError(w, http.StatusBadRequest, "invalid_object", "name e value são obrigatórios")
		return
	}
	writeJSON(w, http.StatusOK, s.store.CreateLink(req, s.baseURL))
}

func (s *Server) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req asaas.CheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 || len(req.BillingTypes) == 0 {
		apiError(w, http.StatusBadRequest, "invalid_object", "items e billingTypes são obrigatórios")
		return
	}
	writeJSON(w, http.StatusOK, s.store.CreateCheckout(req, s.baseURL))
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	var req simdto.ConfirmRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	status := strings.ToUpper(req.Status)
	if status == "" {
		status = asaas.PaymentReceived
	}
	if status != asaas.PaymentReceived && status != asaas.PaymentConfirmed && status != "RECEIVED_IN_CASH" {
		apiError(w, http.StatusBadRequest, "invalid_status", "status deve ser RECEIVED, CONFIRMED ou RECEIVED_IN_CASH")
		return
	}
	s.transition(w, r, status)
}

func (s *Server) overdue(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, asaas.PaymentOverdue)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, status string) {
	p, err := s.store.SetStatus(chi.URLParam(r, "id"), status)
	if err != nil {
		storeError(w, err)
		return
	}
	event, _ := subscription.EventForPaymentStatus(status)
	writeJSON(w, http.StatusOK, simdto.SimulateResponse{
		PaymentID: p.ID, Status: p.Status, Event: event,
		Delivered: s.deliver(r.Context(), event, &p, nil),
	})
}

func (s *Server) payLink(w http.ResponseWriter, r *http.Request) {
	billing := s.payBilling(w, r)
	if billing == "" {
		return
	}
	p, err := s.store.PayLink(chi.URLParam(r, "id"), billing)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, simdto.SimulateResponse{
		PaymentID: p.ID, Status: p.Status, Event: subscription.EventPaymentReceived,
		Delivered: s.deliver(r.Context(), subscription.EventPaymentReceived, &p, nil),
	})
}

func (s *Server) payCheckout(w http.ResponseWriter, r *http.Request) {
	billing := s.payBilling(w, r)
	if billing == "" {
		return
	}
	co, p, err := s.store.PayCheckout(chi.URLParam(r, "id"), billing)
	if err != nil {
		storeError(w, err)
		return
	}
	event, _ := subscription.EventForPaymentStatus(p.Status)
	ok := s.deliver(r.Context(), subscription.EventCheckoutPaid, nil, &co)
	ok = s.deliver(r.Context(), event, &p, nil) && ok
	writeJSON(w, http.StatusOK, simdto.SimulateResponse{PaymentID: p.ID, Status: p.Status, Event: event, Delivered: ok})
}

// payBilling lê o tipo de cobrança opcional; "" indica resposta de erro já enviada
func (s *Server) payBilling(w http.ResponseWriter, r *http.Request) asaas.BillingType {
	var req simdto.PayRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return ""
	}
	billing := asaas.BillingType(strings.ToUpper(req.BillingType))
	if billing == "" {
		billing = asaas.BillingPix
	}
	if !billing.Valid() || billing == asaas.BillingUndefined {
		apiError(w, http.StatusBadRequest, "invalid_billingType", "Forma de pagamento inválida")
		return ""
	}
	return billing
}

// fire envia o webhook de uma operação da API sem segurar a resposta
func (s *Server) fire(ctx context.Context, event string, p *asaas.Payment, c *asaas.Checkout) {
	if s.sender == nil {
		return
	}
	if !s.async {
		s.deliver(ctx, event, p, c)
		return
	}
	go s.deliver(context.WithoutCancel(ctx), event, p, c)
}

func (s *Server) deliver(ctx context.Context, event string, p *asaas.Payment, c *asaas.Checkout) bool {
	if s.sender == nil {
		return false
	}
	return s.sender.Send(ctx, webhook.NewEvent(event, p, c)) == nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		apiError(w, http.StatusBadRequest, "invalid_json", "JSON inválido")
		return false
	}
	return true
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		apiError(w, http.StatusNotFound, "not_found", "Recurso não encontrado")
	case errors.Is(err, store.ErrInvalidStatus):
		apiError(w, http.StatusBadRequest, "invalid_action", "Operação não permitida no status atual")
	default:
		apiError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func apiError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, asaas.APIError{Errors: []asaas.ErrorItem{{Code: code, Description: desc}}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
