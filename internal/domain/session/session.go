// Package session holds the credentials of the signed-in user and admin and
// mirrors them to client storage.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/resto-client/internal/storage"
)

// Scope separates the customer credentials from the elevated admin ones.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// Key returns the storage key the scope's session is persisted under.
func (s Scope) Key() string {
	if s == ScopeAdmin {
		return storage.KeyAdminUser
	}
	return storage.KeyUser
}

// User is the identity returned by the backend at login.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

// Verification is the admin payload fetched from the verify endpoint right
// after an admin login.
type Verification struct {
	RestaurantID string    `json:"restaurantId"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions,omitempty"`
	VerifiedAt   time.Time `json:"verifiedAt"`
}

// Session is the persisted credential set of one scope. In cookie mode both
// tokens are empty and the credentials live in the HTTP cookie jar.
type Session struct {
	AccessToken  string        `json:"accessToken,omitempty"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	User         User          `json:"user"`
	Verification *Verification `json:"verification,omitempty"`
}

// Tokens is the result of a login or refresh call. An empty Refresh keeps the
// previous refresh token.
type Tokens struct {
	Access  string
	Refresh string
}

// AccessExpiry returns the "exp" claim of the access token. The signature is
// not verified; the backend stays the authority on validity.
func (s *Session) AccessExpiry() (time.Time, bool) {
	if s == nil || s.AccessToken == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// AccessExpired reports whether the access token carries an expiry that lies
// before now. Opaque tokens are never considered expired.
func (s *Session) AccessExpired(now time.Time) bool {
	exp, ok := s.AccessExpiry()
	return ok && !now.Before(exp)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Verification != nil {
		v := *s.Verification
		v.Permissions = append([]string(nil), s.Verification.Permissions...)
		c.Verification = &v
	}
	return &c
}
