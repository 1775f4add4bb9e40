// Package auth verifies bearer tokens issued by the identity provider and
// places the actor id and role on the request context. Token issuance is out
// of scope; the service only verifies.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/httputil"
	"senderguard/pkg/requestcontext"
)

// Claims are the token claims the service relies on: subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 tokens signed with a shared key.
type Validator struct {
	key    []byte
	leeway time.Duration
}

func NewValidator(signingKey string) (*Validator, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	return &Validator{key: []byte(signingKey), leeway: 30 * time.Second}, nil
}

// Identity is the verified actor.
type Identity struct {
	ActorID id.UserID
	Role    id.Role
}

func (v *Validator) Validate(token string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	actorID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ActorID: actorID, Role: role}, nil
}

// Sign issues a token for tests and local tooling.
func (v *Validator) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: identity.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ActorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// TokenValidator is satisfied by *Validator.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			identity, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"expired", errors.Is(err, jwt.ErrTokenExpired),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActor(ctx, identity.ActorID, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
