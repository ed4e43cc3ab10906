// Package auth validates bearer tokens issued by the external identity
// service and exposes the caller's identity to handlers. Token issuance is
// out of scope here; this side only verifies and extracts claims.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"landledger/pkg/requestcontext"
)

// Role names carried in the token. Verifiers register titles; citizens own,
// list and buy them.
const (
	RoleVerifier = "verifier"
	RoleCitizen  = "citizen"
)

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	AccountID     string
	WalletAddress string
	Role          string
}

type contextKeyIdentity struct{}

var identityKey = contextKeyIdentity{}

// GetIdentity retrieves the authenticated identity from the context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}

// WithIdentity attaches an identity to the context; exported for handler tests.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// Validator verifies HMAC-signed tokens from the identity service.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

type tokenClaims struct {
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a bearer token, returning the identity.
func (v *Validator) ValidateToken(tokenString string) (Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("token is invalid")
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	return Identity{
		AccountID:     claims.Subject,
		WalletAddress: strings.ToLower(claims.WalletAddress),
		Role:          claims.Role,
	}, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// identity in the request context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w)
				return
			}

			ident, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, ident)))
		})
	}
}

// RequireRole gates a subtree to callers holding the given role. Must be
// mounted inside RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := GetIdentity(r.Context())
			if !ok || ident.Role != role {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"role not permitted"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
