// Package auth turns bearer tokens into the principal the dashboard serves.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ZanzyTHEbar/workpulse/internal/errors"
	"github.com/ZanzyTHEbar/workpulse/internal/types"
)

const principalKey = "workpulse.principal"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator signs and verifies HS256 session tokens. The subject is read
// from the "oid" claim, falling back to "sub"; the display name from "name".
type Authenticator struct {
	secret []byte
	clock  quartz.Clock
}

// NewAuthenticator creates an Authenticator. A nil clock uses real time.
func NewAuthenticator(secret string, clock quartz.Clock) *Authenticator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Authenticator{secret: []byte(secret), clock: clock}
}

// IssueToken signs a token for p valid for ttl.
func (a *Authenticator) IssueToken(p types.Principal, ttl time.Duration) (string, error) {
	now := a.clock.Now()
	claims := jwt.MapClaims{
		"oid":  p.ID,
		"sub":  p.ID,
		"name": p.DisplayName,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenString and extracts its principal.
func (a *Authenticator) Validate(tokenString string) (types.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.clock.Now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.Principal{}, ErrInvalidToken
	}

	id, _ := claims["oid"].(string)
	if id == "" {
		id, _ = claims["sub"].(string)
	}
	if id == "" {
		return types.Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return types.Principal{ID: id, DisplayName: name}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// principal on the context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.fromHeader(c.GetHeader("Authorization"))
		if err != nil {
			appErr := apperrors.NewUnauthorizedError(unauthorizedMessage(err))
			appErr.RequestID = c.GetHeader("X-Request-ID")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func (a *Authenticator) fromHeader(header string) (types.Principal, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return types.Principal{}, ErrMissingToken
	}
	return a.Validate(strings.TrimSpace(token))
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, ErrMissingToken) {
		return "Authorization header is missing or malformed"
	}
	return "Invalid or expired token"
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(c *gin.Context) (types.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return types.Principal{}, false
	}
	p, ok := v.(types.Principal)
	return p, ok
}
