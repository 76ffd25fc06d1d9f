package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	SandboxURL    = "https://sandbox.asaas.com/api/v3"
	ProductionURL = "https://api.asaas.com/v3"
)

type Config struct {
	BaseURL        string
	APIKey         string
	RPS            int           // 0 = sem limite
	Timeout        time.Duration // default 10s
	MaxRetries     int           // default 3
	InitialBackoff time.Duration // default 200ms, dobra a cada tentativa
}

// Client fala com a API REST v3 do Asaas
type Client struct {
	BaseURL string
	HTTP    *http.Client

	apiKey     string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration

	// OnRequest é chamado ao fim de cada tentativa (métricas); status 0 = erro de rede
	OnRequest func(method, path string, status int)
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.InitialBackoff,
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	}
	return c
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCustomers busca clientes não removidos por CPF/CNPJ e/ou e-mail
func (c *Client) FindCustomers(ctx context.Context, cpfCnpj, email string) ([]Customer, error) {
	q := url.Values{}
	if cpfCnpj != "" {
		q.Set("cpfCnpj", cpfCnpj)
	}
	if email != "" {
		q.Set("email", email)
	}
	var out List[Customer]
	if err := c.do(ctx, http.MethodGet, "/customers", q, nil, &out); err != nil {
		return nil, err
	}
	res := make([]Customer, 0, len(out.Data))
	for _, cu := range out.Data {
		if !cu.Deleted {
			res = append(res, cu)
		}
	}
	return res, nil
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPixQrCode(ctx context.Context, paymentID string) (*PixQrCode, error) {
	var out PixQrCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/pixQrCode", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePayment(ctx context.Context, id string) error {
	var out DeleteResponse
	return c.do(ctx, http.MethodDelete, "/payments/"+url.PathEscape(id), nil, nil, &out)
}

func (c *Client) RefundPayment(ctx context.Context, id string, req RefundRequest) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(id)+"/refund", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	var out PaymentLink
	if err := c.do(ctx, http.MethodPost, "/paymentLinks", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	var out Checkout
	if err := c.do(ctx, http.MethodPost, "/checkouts", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executa a requisição com limite de taxa e retry.
// GET/DELETE repetem em erro de rede e 5xx; POST só repete em 429 para não duplicar cobranças.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("asaas marshal: %w", err)
		}
		payload = b
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		status, err := c.once(ctx, method, u, payload, out)
		if c.OnRequest != nil {
			c.OnRequest(method, path, status)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(method, status) {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, u string, payload []byte, out any) (int, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fitness-benefits-platform")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("asaas %s %s: %w", method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		b, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		_ = json.Unmarshal(b, apiErr)
		return res.StatusCode, apiErr
	}
	if out == nil {
		return res.StatusCode, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return res.StatusCode, fmt.Errorf("asaas decode: %w", err)
	}
	return res.StatusCode, nil
}

func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if method == http.MethodPost {
		return false
	}
	switch status {
	case 0, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
