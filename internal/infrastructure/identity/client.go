// Package identity validates check-in proofs against the identity service.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
	"github.com/example/amenity-reservations/internal/domain/attendance"
)

const contextReservationCheckIn = "RESERVATION_CHECK_IN"

type Client struct {
	hc      *http.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ ports.ProofVerifier = (*Client)(nil)

type checkInContext struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservationId"`
	TenantID      string `json:"tenantId"`
}

func (c *Client) Verify(ctx context.Context, req ports.ProofRequest) (bool, error) {
	cc := checkInContext{Type: contextReservationCheckIn, ReservationID: req.ReservationID, TenantID: req.TenantID}

	var path string
	var payload any
	switch req.Method {
	case attendance.MethodQR:
		path = "/v2/contextual-tokens/validate"
		payload = map[string]any{"token": req.Payload, "context": cc}
	case attendance.MethodBiometric:
		path = "/v2/biometric/validate"
		payload = map[string]any{"biometricData": req.Payload, "userId": req.UserID, "tenantId": req.TenantID}
	case attendance.MethodSMS:
		path = "/v2/sms/validate"
		payload = map[string]any{"code": req.Payload, "userId": req.UserID, "tenantId": req.TenantID, "context": cc}
	default:
		return false, fmt.Errorf("identity: method %s has no remote validation", req.Method)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", req.TenantID)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("identity %s: status=%d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		// The service answers 4xx for tokens it recognises as invalid.
		return false, nil
	}
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("identity %s: decode: %w", path, err)
	}
	return out.Valid, nil
}
