package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/radixapp/radix/internal/domain"
)

type contextKey string

const userKey contextKey = "user"

// Middleware authenticates the request's session and puts the user on
// the context. Unauthenticated requests get 401.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := service.Authenticate(r)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceMiddleware guards the internal adapter API with the shared
// HS256 bearer token.
func ServiceMiddleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"authorization header required"}`, http.StatusUnauthorized)
				return
			}
			if err := tokens.ValidateServiceToken(parts[1]); err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser extracts the authenticated user from the context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok
}

// RequireUser is a helper for handlers that need authentication.
func RequireUser(ctx context.Context) (*domain.User, error) {
	user, ok := GetUser(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}
