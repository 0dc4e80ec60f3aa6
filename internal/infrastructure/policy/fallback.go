package policy

import (
	"regexp"
	"time"

	"github.com/example/amenity-reservations/internal/domain/policy"
)

const (
	DefaultRestrictedPattern = `restricted|admin`
	defaultMaxAdvance        = 90 * 24 * time.Hour
)

// Fallback decides locally while the policy service is unreachable.
type Fallback struct {
	Restricted *regexp.Regexp
	Now        func() time.Time
}

func NewFallback(pattern string, now func() time.Time) (Fallback, error) {
	if pattern == "" {
		pattern = DefaultRestrictedPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Fallback{}, err
	}
	if now == nil {
		now = time.Now
	}
	return Fallback{Restricted: re, Now: now}, nil
}

func (f Fallback) Decide(req policy.Request, cause string) policy.Decision {
	deny := func(reason string) policy.Decision {
		return policy.Decision{Effect: policy.Deny, Reason: reason, PolicyID: "fallback", Fallback: true}
	}
	if f.Restricted != nil && f.Restricted.MatchString(req.Resource) {
		return deny("policy service unavailable; restricted resource denied by fallback")
	}

	c := req.Context
	now := f.Now()
	maxAdvance := c.MaxAdvance
	if maxAdvance <= 0 {
		maxAdvance = defaultMaxAdvance
	}
	switch {
	case !c.Start.After(now):
		return deny("fallback: start time must be in the future")
	case !c.End.After(c.Start):
		return deny("fallback: end time must be after start time")
	case c.Start.Sub(now) > maxAdvance:
		return deny("fallback: reservation too far in advance")
	case c.Capacity > 0 && c.PartySize > c.Capacity:
		return deny("fallback: party size exceeds capacity")
	}

	return policy.Decision{
		Effect:      policy.Permit,
		Obligations: []policy.Obligation{{Type: policy.ObligationLogFallback}},
		Reason:      "permitted by fallback: " + cause,
		PolicyID:    "fallback",
		Fallback:    true,
	}
}
