package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// OwnerValidator defines the interface for validating bearer tokens. The
// registry trusts the owner string the validator returns; it performs no
// authorization beyond record ownership tagging.
type OwnerValidator interface {
	ValidateToken(tokenString string) (*OwnerClaims, error)
}

// OwnerClaims represents the claims we expect from the token validator.
type OwnerClaims struct {
	Owner     string
	SessionID string
}

type contextKeyOwner struct{}
type contextKeySessionID struct{}

var (
	ContextKeyOwner     = contextKeyOwner{}
	ContextKeySessionID = contextKeySessionID{}
)

// GetOwner retrieves the authenticated owner identity from the context.
func GetOwner(ctx context.Context) string {
	owner, ok := ctx.Value(ContextKeyOwner).(string)
	if !ok {
		return ""
	}
	return owner
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireAuth extracts and validates the bearer token, placing the owner
// identity in context for handlers.
func RequireAuth(validator OwnerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, ContextKeyOwner, claims.Owner)
			ctx = context.WithValue(ctx, ContextKeySessionID, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
