// Package webhook recebe as notificações do Asaas, grava cada evento uma única
// vez e o repassa ao Kafka para reconciliação assíncrona.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/payment-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

// TokenHeader é o header enviado pelo Asaas com o token configurado no painel
const TokenHeader = "asaas-access-token"

const maxBody = 1 << 20

type Store interface {
	RecordWebhookEvent(ctx context.Context, e repo.WebhookEvent) (status string, inserted bool, err error)
	MarkWebhookQueued(ctx context.Context, eventID string) error
}

type Publisher interface {
	PublishWebhook(ctx context.Context, e events.AsaasWebhook) error
}

type Handler struct {
	log   *zap.Logger
	token string
	store Store
	pub   Publisher

	// callbacks de métricas
	OnReceived  func(event string)
	OnDuplicate func()
	OnRejected  func(reason string)
}

// NewHandler cria o receptor de webhooks. Token vazio desativa a validação.
func NewHandler(log *zap.Logger, token string, store Store, pub Publisher) *Handler {
	if token == "" {
		log.Warn("ASAAS_WEBHOOK_TOKEN not set: webhook token validation disabled")
	}
	return &Handler{log: log, token: token, store: store, pub: pub}
}

type response struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(TokenHeader)), []byte(h.token)) != 1 {
		h.reject("token")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || !gjson.ValidBytes(body) {
		h.reject("body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	fields := gjson.GetManyBytes(body, "id", "event", "payment.id", "checkout.id")
	eventID, event := fields[0].String(), fields[1].String()
	paymentID := fields[2].String()
	if paymentID == "" {
		paymentID = fields[3].String()
	}
	if eventID == "" || event == "" {
		h.reject("fields")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and event are required"})
		return
	}

	ctx := r.Context()
	status, inserted, err := h.store.RecordWebhookEvent(ctx, repo.WebhookEvent{
		EventID:   eventID,
		EventType: event,
		PaymentID: paymentID,
		Payload:   body,
	})
	if err != nil {
		h.log.Error("record webhook failed", zap.String("event_id", eventID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}

	// já publicado antes: só confirma o recebimento
	if !inserted && status != asaas.WebhookReceived {
		if h.OnDuplicate != nil {
			h.OnDuplicate()
		}
		h.log.Info("duplicate webhook", zap.String("event_id", eventID), zap.String("status", status))
		writeJSON(w, http.StatusOK, response{Received: true, Duplicate: true})
		return
	}

	msg := events.AsaasWebhook{
		EventID:    eventID,
		Event:      event,
		PaymentID:  paymentID,
		Raw:        json.RawMessage(body),
		ReceivedMs: time.Now().UnixMilli(),
	}
	if err := h.pub.PublishWebhook(ctx, msg); err != nil {
		// fica RECEIVED; a reentrega do Asaas publica de novo
		h.log.Error("publish webhook failed", zap.String("event_id", eventID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "queue unavailable"})
		return
	}
	if err := h.store.MarkWebhookQueued(ctx, eventID); err != nil {
		h.log.Warn("mark webhook queued failed", zap.String("event_id", eventID), zap.Error(err))
	}

	if h.OnReceived != nil {
		h.OnReceived(event)
	}
	h.log.Info("webhook queued",
		zap.String("event_id", eventID),
		zap.String("event", event),
		zap.String("payment_id", paymentID),
		zap.Bool("republished", !inserted))
	writeJSON(w, http.StatusOK, response{Received: true, Duplicate: !inserted})
}

func (h *Handler) reject(reason string) {
	if h.OnRejected != nil {
		h.OnRejected(reason)
	}
	h.log.Warn("webhook rejected", zap.String("reason", reason))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
