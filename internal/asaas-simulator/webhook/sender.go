package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/shared/asaas"
)

// TokenHeader é o mesmo header que o Asaas envia para a URL cadastrada
const TokenHeader = "asaas-access-token"

type Sender struct {
	URL     string
	Token   string
	HTTP    *http.Client
	Log     *zap.Logger
	Retries int           // default 3
	Backoff time.Duration // linear, default 300ms

	OnSent func(event string, ok bool)
}

func NewSender(log *zap.Logger, url, token string) *Sender {
	return &Sender{URL: url, Token: token, Log: log, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// NewEvent monta um evento com id e data no formato do Asaas
func NewEvent(event string, p *asaas.Payment, c *asaas.Checkout) asaas.WebhookEvent {
	return asaas.WebhookEvent{
		ID:          "evt_" + uuid.NewString(),
		Event:       event,
		DateCreated: time.Now().Format(time.DateTime),
		Payment:     p,
		Checkout:    c,
	}
}

// Send entrega o evento; 2xx encerra, qualquer outra resposta é repetida
func (s *Sender) Send(ctx context.Context, ev asaas.WebhookEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	retries := s.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	for i := 0; ; i++ {
		err = s.post(ctx, body)
		if err == nil {
			s.Log.Info("webhook delivered", zap.String("event", ev.Event), zap.String("eventId", ev.ID))
			s.sent(ev.Event, true)
			return nil
		}
		if i >= retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(i+1)):
		}
	}
	s.Log.Warn("webhook delivery failed", zap.String("event", ev.Event), zap.String("eventId", ev.ID), zap.Error(err))
	s.sent(ev.Event, false)
	return err
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set(TokenHeader, s.Token)
	}
	res, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d", res.StatusCode)
	}
	return nil
}

func (s *Sender) sent(event string, ok bool) {
	if s.OnSent != nil {
		s.OnSent(event, ok)
	}
}
