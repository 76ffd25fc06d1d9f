package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	subdto "github.com/radieske/fitness-benefits-platform/internal/checkin-service/subscriptions/dto"
)

// ErrNoActive indica que o assinante não tem assinatura ativa e vigente
var ErrNoActive = errors.New("no active subscription")

// Client consulta o payment-service com a chave service_role
type Client struct {
	BaseURL    string
	ServiceKey string
	HTTP       *http.Client
}

func New(base, serviceKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(base, "/"),
		ServiceKey: serviceKey,
		HTTP:       &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Active(ctx context.Context, kind, subscriberID string) (*subdto.ActiveSubscription, error) {
	q := url.Values{"kind": {kind}, "subscriber_id": {subscriberID}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/internal/subscriptions/active?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/json")
	if c.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNoActive
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("payment-service active subscription http %d", res.StatusCode)
	}
	var out subdto.ActiveSubscription
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.ExpiresAt != nil && !out.ExpiresAt.After(time.Now()) {
		return nil, ErrNoActive
	}
	return &out, nil
}
