package web

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/application/usecases"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

const (
	HeaderTenant         = "X-Tenant-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	RoleAdmin = "ADMIN"

	ctxPrincipal = "principal"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type TokenValidator interface {
	Validate(token string) (*Claims, error)
}

// JWTValidator accepts RS256 tokens when a public key is configured and
// HS256 tokens otherwise.
type JWTValidator struct {
	secret    []byte
	publicKey *rsa.PublicKey
	now       func() time.Time
}

func NewJWTValidator(secret, publicKeyPEM string) (*JWTValidator, error) {
	v := &JWTValidator{secret: []byte(strings.TrimSpace(secret)), now: time.Now}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		v.publicKey = key
	}
	if v.publicKey == nil && len(v.secret) == 0 {
		return nil, errors.New("jwt key not configured (neither public key nor secret)")
	}
	return v, nil
}

func (v *JWTValidator) Validate(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if v.publicKey != nil {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v, expected RS256", t.Header["alg"])
			}
			return v.publicKey, nil
		}
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Principal is the authenticated caller scoped to one tenant.
type Principal struct {
	TenantID string
	Subject  string
	Admin    bool
}

func (p Principal) Actor() usecases.Actor {
	return usecases.Actor{Subject: p.Subject, Admin: p.Admin}
}

// authenticate requires a valid bearer token and an X-Tenant-ID header
// matching the token's tenant claim when the token carries one.
func authenticate(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := v.Validate(ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				return internaltypes.Wrap(internaltypes.KindUnauthorized, err, "invalid or missing token")
			}
			tenant := strings.TrimSpace(c.Request().Header.Get(HeaderTenant))
			if tenant == "" {
				tenant = claims.TenantID
			}
			if tenant == "" {
				return internaltypes.New(internaltypes.KindInvalidRequest, "%s header is required", HeaderTenant)
			}
			if claims.TenantID != "" && claims.TenantID != tenant {
				return internaltypes.New(internaltypes.KindForbidden, "token is not valid for tenant %s", tenant)
			}
			c.Set(ctxPrincipal, Principal{TenantID: tenant, Subject: claims.Subject, Admin: claims.HasRole(RoleAdmin)})
			return next(c)
		}
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !principal(c).Admin {
			return internaltypes.New(internaltypes.KindForbidden, "administrator role required")
		}
		return next(c)
	}
}

func principal(c echo.Context) Principal {
	p, _ := c.Get(ctxPrincipal).(Principal)
	return p
}
