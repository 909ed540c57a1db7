package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/radixapp/radix/internal/domain"
)

// SessionCookie is the cookie the NextAuth frontend stores the session
// token in.
const SessionCookie = "next-auth.session-token"

// UserRepository is the subset of the user store auth needs.
type UserRepository interface {
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)
}

// Service resolves incoming requests to users via their session token.
type Service struct {
	users UserRepository
}

// NewService creates an auth service
func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

// Authenticate resolves the request's session token (cookie or bearer
// header) to a user. Returns domain.ErrUnauthorized when no token is
// present.
func (s *Service) Authenticate(r *http.Request) (*domain.User, error) {
	token := sessionToken(r)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.users.GetBySessionToken(r.Context(), token)
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
