// Package auth owns the signed-in state of the customer and the restaurant
// admin: login, logout, session validation and the guards built on them.
package auth

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/domain/session"
)

// Guard errors.
var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNotAdmin    = errors.New("admin access required")
)

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// Backend issues and renews credentials.
type Backend interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Register(ctx context.Context, r RegisterRequest) (*session.Session, error)
	GoogleLogin(ctx context.Context, credential string) (*session.Session, error)
	RefreshUser(ctx context.Context, refreshToken string) (session.Tokens, error)
	RefreshAdmin(ctx context.Context, refreshToken string) (session.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	AdminLogin(ctx context.Context, email, password string) (*session.Session, error)
	AdminVerify(ctx context.Context, accessToken string) (*session.Verification, error)
}

// LogoutHook runs after the customer session is destroyed. Hooks drop the
// client state tied to the customer, such as the cart.
type LogoutHook func(ctx context.Context) error
