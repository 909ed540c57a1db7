package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account as stored by the auth adapter.
// Rooms treat it as immutable; only the public projection ever goes
// over the wire.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Image         string     `json:"image"`
	EmailVerified *time.Time `json:"emailVerified"`
	AccessToken   string     `json:"accessToken"`
	Accounts      []Account  `json:"accounts"`
	Sessions      []Session  `json:"sessions"`
}

// PublicUser is the projection of a User that is safe to broadcast.
type PublicUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Image string    `json:"image"`
}

// ToPublic strips everything but id, display name and avatar.
func (u *User) ToPublic() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Image: u.Image,
	}
}

// Account is an OAuth account linked to a user by the NextAuth adapter.
type Account struct {
	Provider          string `json:"provider"`
	ProviderType      string `json:"providerType"`
	ProviderAccountID string `json:"providerAccountId"`
	AccessToken       string `json:"accessToken"`
	ExpiresAt         int64  `json:"expiresAt"`
	Scope             string `json:"scope"`
	TokenType         string `json:"tokenType"`
	IDToken           string `json:"idToken"`
}

// Session is a browser session created by the NextAuth adapter. The
// token is opaque; expiry is enforced on lookup.
type Session struct {
	SessionToken string    `json:"sessionToken"`
	UserID       uuid.UUID `json:"userId"`
	Expires      time.Time `json:"expires"`
}

// SessionAndUser pairs a session with its user for adapter lookups.
type SessionAndUser struct {
	Session Session `json:"session"`
	User    User    `json:"user"`
}
