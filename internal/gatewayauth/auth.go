// Package gatewayauth validates bearer tokens on inbound gateway requests
// and carries the resulting identity through to the reverse proxy.
package gatewayauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserContext is the identity injected into the request once a bearer token
// has been validated (spec.md §4.3).
type UserContext struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type ctxKey struct{}

// WithUserContext returns a context carrying uc.
func WithUserContext(ctx context.Context, uc UserContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, uc)
}

// UserFromContext retrieves the UserContext stashed by WithUserContext.
func UserFromContext(ctx context.Context) (UserContext, bool) {
	uc, ok := ctx.Value(ctxKey{}).(UserContext)
	return uc, ok
}

// claims is the expected shape of the gateway's JWT payload.
type claims struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens against one HMAC secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator using secret to verify HS256 signatures.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

var (
	// ErrMissingToken is returned when the Authorization header is absent
	// or malformed.
	ErrMissingToken = errors.New("missing or malformed bearer token")
	// ErrInvalidToken is returned when the token fails signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid token")
)

// ExtractBearer pulls the token out of an Authorization: Bearer <token>
// header, returning ErrMissingToken on absence or malformed value.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// Validate parses and verifies tokenStr, returning the UserContext it
// encodes. Any parse or validation failure returns ErrInvalidToken.
func (v *Validator) Validate(tokenStr string) (UserContext, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return UserContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return UserContext{
		UserID:      c.UserID,
		Username:    c.Username,
		Email:       c.Email,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}, nil
}
