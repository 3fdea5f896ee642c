// Package backend maps the restaurant REST API onto typed calls.
//
// Auth endpoints go through Auth on a plain http.Client: they must not be
// retried by the refresh logic. Everything else goes through API and Admin,
// which sit on top of the scoped apiclient clients.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/domain/auth"
	"github.com/xenking/resto-client/internal/domain/session"
)

// Auth endpoints.
const (
	pathLogin        = "/user/login"
	pathRegister     = "/user/register"
	pathGoogleLogin  = "/user/google-login"
	pathRefresh      = "/user/refresh-token"
	pathLogout       = "/user/logout"
	pathAdminLogin   = "/restaurant/admin/login"
	pathAdminVerify  = "/restaurant/admin/verify"
	pathAdminRefresh = "/restaurant/admin/refresh-token"
)

// Auth talks to the unauthenticated endpoints that issue and renew
// credentials.
type Auth struct {
	baseURL        string
	http           *http.Client
	googleClientID string
	now            func() time.Time
}

var _ auth.Backend = (*Auth)(nil)

// NewAuth creates an Auth. googleClientID is sent along with Google
// credentials so the backend can check the audience.
func NewAuth(baseURL string, client *http.Client, googleClientID string) *Auth {
	if client == nil {
		client = http.DefaultClient
	}
	return &Auth{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           client,
		googleClientID: googleClientID,
		now:            time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a customer session.
func (a *Auth) Login(ctx context.Context, email, password string) (*session.Session, error) {
	body, err := a.post(ctx, pathLogin, credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return decodeSession(body, "user")
}

// Register creates an account and signs it in.
func (a *Auth) Register(ctx context.Context, r auth.RegisterRequest) (*session.Session, error) {
	body, err := a.post(ctx, pathRegister, r, "")
	if err != nil {
		return nil, errors.Wrap(err, "register")
	}
	return decodeSession(body, "user")
}

// GoogleLogin exchanges a Google ID credential for a customer session.
func (a *Auth) GoogleLogin(ctx context.Context, credential string) (*session.Session, error) {
	if credential == "" {
		return nil, errors.New("google credential required")
	}
	req := struct {
		Credential string `json:"credential"`
		ClientID   string `json:"clientId,omitempty"`
	}{Credential: credential, ClientID: a.googleClientID}

	body, err := a.post(ctx, pathGoogleLogin, req, "")
	if err != nil {
		return nil, errors.Wrap(err, "google login")
	}
	return decodeSession(body, "user")
}

// RefreshUser renews the customer access token.
func (a *Auth) RefreshUser(ctx context.Context, refreshToken string) (session.Tokens, error) {
	return a.refresh(ctx, pathRefresh, refreshToken)
}

// RefreshAdmin renews the admin access token.
func (a *Auth) RefreshAdmin(ctx context.Context, refreshToken string) (session.Tokens, error) {
	return a.refresh(ctx, pathAdminRefresh, refreshToken)
}

func (a *Auth) refresh(ctx context.Context, path, refreshToken string) (session.Tokens, error) {
	var in any
	if refreshToken != "" {
		in = struct {
			RefreshToken string `json:"refreshToken"`
		}{refreshToken}
	}
	body, err := a.post(ctx, path, in, "")
	if err != nil {
		return session.Tokens{}, errors.Wrap(err, "refresh token")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// Cookie mode: the new credentials arrived as Set-Cookie.
		return session.Tokens{}, nil
	}
	access, err := findString(body, accessKeys, nil)
	if err != nil {
		return session.Tokens{}, err
	}
	refresh, err := findString(body, refreshKeys, nil)
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{Access: access, Refresh: refresh}, nil
}

// Logout tells the backend to drop the session. accessToken may be empty in
// cookie mode.
func (a *Auth) Logout(ctx context.Context, accessToken string) error {
	if _, err := a.post(ctx, pathLogout, nil, accessToken); err != nil {
		return errors.Wrap(err, "logout")
	}
	return nil
}

// AdminLogin exchanges admin credentials for an admin session without
// verification data.
func (a *Auth) AdminLogin(ctx context.Context, email, password string) (*session.Session, error) {
	body, err := a.post(ctx, pathAdminLogin, credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, errors.Wrap(err, "admin login")
	}
	return decodeSession(body, "admin", "user")
}

// AdminVerify fetches the verification payload of a freshly issued admin
// token. It is called before the admin session is stored, so the token is
// passed explicitly.
func (a *Auth) AdminVerify(ctx context.Context, accessToken string) (*session.Verification, error) {
	body, err := a.do(ctx, http.MethodGet, pathAdminVerify, nil, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "admin verify")
	}

	if inner, err := findObject(body, "admin", "data"); err == nil && inner != nil {
		body = inner
	}
	var v session.Verification
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, errors.Wrap(err, "decode verification")
	}
	if v.VerifiedAt.IsZero() {
		v.VerifiedAt = a.now().UTC()
	}
	return &v, nil
}

func (a *Auth) post(ctx context.Context, path string, in any, token string) ([]byte, error) {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = b
	}
	return a.do(ctx, http.MethodPost, path, body, token)
}

func (a *Auth) do(ctx context.Context, method, path string, body []byte, token string) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiclient.ReadError(resp)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	return out, nil
}

var (
	accessKeys  = []string{"accessToken", "access_token", "token"}
	refreshKeys = []string{"refreshToken", "refresh_token"}
	idKeys      = []string{"id", "_id"}
)

// decodeSession reads the tokens and the identity object stored under the
// first of userKeys. Tokens may sit at the top level or inside "data".
func decodeSession(body []byte, userKeys ...string) (*session.Session, error) {
	access, err := findString(body, accessKeys, []string{"data"})
	if err != nil {
		return nil, err
	}
	refresh, err := findString(body, refreshKeys, []string{"data"})
	if err != nil {
		return nil, err
	}

	raw, err := findObject(body, userKeys...)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		if data, err := findObject(body, "data"); err == nil && data != nil {
			raw, _ = findObject(data, userKeys...)
		}
	}

	s := &session.Session{AccessToken: access, RefreshToken: refresh}
	if raw != nil {
		if err := json.Unmarshal(raw, &s.User); err != nil {
			return nil, errors.Wrap(err, "decode user")
		}
		if s.User.ID == "" {
			if s.User.ID, err = findString(raw, idKeys, nil); err != nil {
				return nil, err
			}
		}
	}
	if s.User.Role == "admin" {
		s.User.IsAdmin = true
	}
	return s, nil
}
