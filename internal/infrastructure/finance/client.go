// Package finance is the HTTP client for the finance service's order API.
package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/amenity-reservations/internal/application/ports"
)

const serviceName = "reservation-service"

type Client struct {
	hc      *http.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ ports.OrderService = (*Client)(nil)

type createOrderRequest struct {
	TenantID          string          `json:"tenantId"`
	CondominiumID     string          `json:"condominiumId"`
	UserID            string          `json:"userId"`
	Type              string          `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description"`
	ReferenceID       string          `json:"referenceId"`
	ReferenceType     string          `json:"referenceType"`
	ExpirationMinutes int             `json:"expirationMinutes"`
}

type orderResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ExpiresAt *time.Time      `json:"expiresAt"`
}

func (o orderResponse) order() *ports.Order {
	return &ports.Order{ID: o.ID, Status: o.Status, Amount: o.Amount, Currency: o.Currency, ExpiresAt: o.ExpiresAt}
}

func (c *Client) CreateOrder(ctx context.Context, req ports.OrderRequest, idempotencyKey string) (*ports.Order, error) {
	body, err := json.Marshal(createOrderRequest{
		TenantID:          req.TenantID,
		CondominiumID:     req.CondominiumID,
		UserID:            req.UserID,
		Type:              req.Type,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Description:       req.Description,
		ReferenceID:       req.ReferenceID,
		ReferenceType:     req.ReferenceType,
		ExpirationMinutes: req.ExpirationMinutes,
	})
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	status, raw, err := c.do(ctx, http.MethodPost, "/v1/orders", req.TenantID, headers, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("create order failed (status=%d)", status)
	}
	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("create order: decode: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create order: response without id")
	}
	return out.order(), nil
}

func (c *Client) CancelOrder(ctx context.Context, tenantID, orderID string) error {
	status, _, err := c.do(ctx, http.MethodPut, "/v1/orders/"+url.PathEscape(orderID)+"/cancel", tenantID, nil, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("cancel order failed (status=%d)", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, tenantID string, headers map[string]string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Service-Name", serviceName)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}
