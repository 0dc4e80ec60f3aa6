// Package policy talks to the external policy decision service and shields
// the reservation flow from its outages.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/domain/policy"
)

const (
	evaluatePath = "/v1/policies/evaluate"
	serviceName  = "reservation-service"
)

type Client struct {
	hc      *http.Client
	baseURL string
	now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, now func() time.Time) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     now,
	}
}

type evaluateRequest struct {
	TenantID      string         `json:"tenantId"`
	CondominiumID string         `json:"condominiumId,omitempty"`
	Action        string         `json:"action"`
	Resource      string         `json:"resource"`
	Subject       string         `json:"subject,omitempty"`
	Context       map[string]any `json:"context"`
}

type evaluateResponse struct {
	Decision    string              `json:"decision"`
	Obligations []policy.Obligation `json:"obligations"`
	Reason      string              `json:"reason"`
	PolicyID    string              `json:"policyId"`
	Version     string              `json:"version"`
}

// Evaluate performs a single HTTP evaluation. Transport errors, timeouts,
// non-2xx answers and unparseable bodies are all errors.
func (c *Client) Evaluate(ctx context.Context, req policy.Request) (policy.Decision, error) {
	pc := req.Context
	body, err := json.Marshal(evaluateRequest{
		TenantID:      req.TenantID,
		CondominiumID: req.CondominiumID,
		Action:        req.Action,
		Resource:      req.Resource,
		Subject:       req.Subject,
		Context: map[string]any{
			"amenityId":       pc.AmenityID,
			"amenityType":     pc.AmenityType,
			"startTime":       pc.Start.Format(time.RFC3339),
			"endTime":         pc.End.Format(time.RFC3339),
			"partySize":       pc.PartySize,
			"amenityCapacity": pc.Capacity,
			"duration":        int(pc.End.Sub(pc.Start) / time.Minute),
			"advanceBooking":  pc.Start.Sub(c.now()).Hours() / 24,
		},
	})
	if err != nil {
		return policy.Decision{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+evaluatePath, bytes.NewReader(body))
	if err != nil {
		return policy.Decision{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Service-Name", serviceName)
	httpReq.Header.Set("X-Tenant-ID", req.TenantID)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return policy.Decision{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return policy.Decision{}, fmt.Errorf("policy evaluate: status=%d", resp.StatusCode)
	}

	var out evaluateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return policy.Decision{}, fmt.Errorf("policy evaluate: decode: %w", err)
	}
	effect := policy.Effect(strings.ToUpper(out.Decision))
	switch effect {
	case policy.Permit, policy.Deny, policy.Indeterminate:
	default:
		return policy.Decision{}, fmt.Errorf("policy evaluate: unknown decision %q", out.Decision)
	}
	return policy.Decision{
		Effect:      effect,
		Obligations: out.Obligations,
		Reason:      out.Reason,
		PolicyID:    out.PolicyID,
		Version:     out.Version,
	}, nil
}

type evaluator interface {
	Evaluate(ctx context.Context, req policy.Request) (policy.Decision, error)
}

// Gateway wraps a Client with a circuit breaker and a local fallback. It
// always returns a decision.
type Gateway struct {
	remote   evaluator
	breaker  *Breaker
	fallback Fallback
	log      *slog.Logger
}

func NewGateway(remote evaluator, breaker *Breaker, fallback Fallback, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{remote: remote, breaker: breaker, fallback: fallback, log: log}
}

func (g *Gateway) Evaluate(ctx context.Context, req policy.Request) policy.Decision {
	if !g.breaker.Allow() {
		g.log.Warn("policy circuit open, using fallback", slog.String("resource", req.Resource))
		return g.fallback.Decide(req, "circuit open")
	}
	d, err := g.remote.Evaluate(ctx, req)
	if err != nil {
		// a caller hanging up says nothing about the policy service
		if !errors.Is(err, context.Canceled) || ctx.Err() == nil {
			g.breaker.Failure()
		}
		g.log.Warn("policy evaluation failed, using fallback",
			slog.String("resource", req.Resource),
			slog.Any("error", err))
		return g.fallback.Decide(req, "evaluation failed")
	}
	g.breaker.Success()
	return d
}
