// Package middleware provides HTTP middlewares for credential resolution and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey string

const userKey ctxKey = "user"

// Resolver maps a bearer token to an identity id. It returns "" with a nil
// error when the token does not name a live identity, and a non-nil error
// only when the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Identity resolves the Authorization bearer token, when present, and
// stores the identity id in the request context. Requests without a token,
// or with one that does not resolve, continue anonymously.
func Identity(resolver Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				logger.Error("resolve credential", zap.Error(err))
				writeJSONError(w, http.StatusInternalServerError, "internal error", "INTERNAL")
				return
			}
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that carry no resolved identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserIDFromContext(r.Context()) == "" {
			writeJSONError(w, http.StatusUnauthorized, "authentication required", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext returns the resolved identity id, or "" for
// anonymous requests.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeJSONError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
