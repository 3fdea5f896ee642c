package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/resto-client/internal/domain/session"
	"github.com/xenking/resto-client/internal/storage"
	"github.com/xenking/resto-client/internal/storage/memory"
)

// --- Mock implementations ---

type mockBackend struct {
	loginSession *session.Session
	loginErr     error
	verification *session.Verification
	verifyErr    error
	refreshed    session.Tokens
	refreshErr   error
	logoutErr    error

	refreshCalls  int
	logoutTokens  []string
	verifyTokens  []string
	registered    []RegisterRequest
	googleCreds   []string
	lastAdminUser string
}

func (m *mockBackend) Login(context.Context, string, string) (*session.Session, error) {
	return m.loginSession, m.loginErr
}

func (m *mockBackend) Register(_ context.Context, r RegisterRequest) (*session.Session, error) {
	m.registered = append(m.registered, r)
	return m.loginSession, m.loginErr
}

func (m *mockBackend) GoogleLogin(_ context.Context, credential string) (*session.Session, error) {
	m.googleCreds = append(m.googleCreds, credential)
	return m.loginSession, m.loginErr
}

func (m *mockBackend) RefreshUser(context.Context, string) (session.Tokens, error) {
	m.refreshCalls++
	return m.refreshed, m.refreshErr
}

func (m *mockBackend) RefreshAdmin(context.Context, string) (session.Tokens, error) {
	m.refreshCalls++
	return m.refreshed, m.refreshErr
}

func (m *mockBackend) Logout(_ context.Context, accessToken string) error {
	m.logoutTokens = append(m.logoutTokens, accessToken)
	return m.logoutErr
}

func (m *mockBackend) AdminLogin(_ context.Context, email, _ string) (*session.Session, error) {
	m.lastAdminUser = email
	return m.loginSession, m.loginErr
}

func (m *mockBackend) AdminVerify(_ context.Context, accessToken string) (*session.Verification, error) {
	m.verifyTokens = append(m.verifyTokens, accessToken)
	return m.verification, m.verifyErr
}

// --- Helpers ---

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

type fixture struct {
	kv      *memory.Store
	user    *session.Store
	admin   *session.Store
	backend *mockBackend
	svc     *Service
}

func newFixture(hooks ...LogoutHook) *fixture {
	kv := memory.New()
	f := &fixture{
		kv:    kv,
		user:  session.NewStore(kv, session.ScopeUser),
		admin: session.NewStore(kv, session.ScopeAdmin),
		backend: &mockBackend{
			loginSession: &session.Session{
				AccessToken:  "a1",
				RefreshToken: "r1",
				User:         session.User{ID: "u1", Email: "ann@example.com"},
			},
			verification: &session.Verification{RestaurantID: "rest-1", Role: "owner"},
		},
	}
	f.svc = NewService(f.backend, f.user, f.admin, hooks...)
	return f
}

// --- Tests ---

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.ErrorIs(t, f.svc.RequireUser(), ErrNotLoggedIn)

	u, err := f.svc.Login(ctx, " ann@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, f.svc.IsLoggedIn())
	require.NoError(t, f.svc.RequireUser())
	assert.Equal(t, "a1", f.user.AccessToken())

	// Persisted under the user key.
	var stored session.Session
	ok, err := storage.GetJSON(ctx, f.kv, storage.KeyUser, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", stored.RefreshToken)
}

func TestLogin_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Login(context.Background(), "", "x")
	require.Error(t, err)
	_, err = f.svc.Login(context.Background(), "a@b.c", "")
	require.Error(t, err)
	assert.False(t, f.svc.IsLoggedIn())
}

func TestLogin_BackendError(t *testing.T) {
	f := newFixture()
	f.backend.loginErr = errors.New("invalid credentials")

	_, err := f.svc.Login(context.Background(), "a@b.c", "x")
	require.ErrorIs(t, err, f.backend.loginErr)
	assert.False(t, f.svc.IsLoggedIn())
}

func TestRegisterAndGoogleLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.Register(ctx, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, f.backend.registered, 1)
	assert.Equal(t, "Ann", f.backend.registered[0].Name)
	assert.True(t, f.svc.IsLoggedIn())

	require.NoError(t, f.user.Clear(ctx))
	_, err = f.svc.GoogleLogin(ctx, "google-credential")
	require.NoError(t, err)
	assert.Equal(t, []string{"google-credential"}, f.backend.googleCreds)
	assert.True(t, f.svc.IsLoggedIn())
}

func TestLogout_RunsHooks(t *testing.T) {
	ctx := context.Background()
	var hooked int
	f := newFixture(func(ctx context.Context) error {
		hooked++
		return nil
	})
	f.svc.OnLogout(func(ctx context.Context) error {
		hooked++
		return errors.New("cart unavailable")
	})
	_, err := f.svc.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)

	err = f.svc.Logout(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, hooked)
	assert.Equal(t, []string{"a1"}, f.backend.logoutTokens)
	assert.False(t, f.svc.IsLoggedIn())
	assert.Nil(t, f.svc.User())
}

func TestLogout_BackendFailureStillClears(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.logoutErr = errors.New("offline")
	_, err := f.svc.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx))
	assert.False(t, f.svc.IsLoggedIn())
}

func TestLogout_WithoutSession(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.Logout(context.Background()))
	assert.Empty(t, f.backend.logoutTokens)
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, storage.SetJSON(ctx, f.kv, storage.KeyUser, session.Session{
		AccessToken: "a1",
		User:        session.User{ID: "u1"},
	}))

	assert.False(t, f.svc.IsLoggedIn())
	require.NoError(t, f.svc.Init(ctx))
	assert.True(t, f.svc.IsLoggedIn())
	assert.Equal(t, "u1", f.svc.User().ID)
	assert.False(t, f.svc.IsAdminLoggedIn())
}

func TestValidateSession(t *testing.T) {
	now := time.Now()
	for _, tc := range []struct {
		name        string
		session     *session.Session
		refreshed   session.Tokens
		refreshErr  error
		wantValid   bool
		wantRefresh int
		wantAccess  string
	}{
		{name: "NoSession"},
		{
			name:      "Fresh",
			session:   &session.Session{AccessToken: token(t, now.Add(time.Hour)), RefreshToken: "r"},
			wantValid: true,
		},
		{
			name:      "Opaque",
			session:   &session.Session{AccessToken: "opaque"},
			wantValid: true,
		},
		{
			name:        "ExpiredRefreshed",
			session:     &session.Session{AccessToken: token(t, now.Add(-time.Minute)), RefreshToken: "r"},
			refreshed:   session.Tokens{Access: "new"},
			wantValid:   true,
			wantRefresh: 1,
			wantAccess:  "new",
		},
		{
			name:        "ExpiredRefreshFails",
			session:     &session.Session{AccessToken: token(t, now.Add(-time.Minute)), RefreshToken: "r"},
			refreshErr:  errors.New("revoked"),
			wantRefresh: 1,
		},
		{
			name:    "ExpiredNoRefreshToken",
			session: &session.Session{AccessToken: token(t, now.Add(-time.Minute))},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			f.backend.refreshed = tc.refreshed
			f.backend.refreshErr = tc.refreshErr
			if tc.session != nil {
				require.NoError(t, f.user.Save(ctx, tc.session))
			}

			valid, err := f.svc.ValidateSession(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantValid, valid)
			assert.Equal(t, tc.wantValid, f.svc.IsLoggedIn())
			assert.Equal(t, tc.wantRefresh, f.backend.refreshCalls)
			if tc.wantAccess != "" {
				assert.Equal(t, tc.wantAccess, f.user.AccessToken())
			}
		})
	}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.loginSession = &session.Session{AccessToken: "adm-a", RefreshToken: "adm-r", User: session.User{ID: "adm1"}}

	require.ErrorIs(t, f.svc.RequireAdmin(), ErrNotAdmin)

	sess, err := f.svc.AdminLogin(ctx, "boss@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, sess.Verification)
	assert.Equal(t, "rest-1", sess.Verification.RestaurantID)
	assert.Equal(t, []string{"adm-a"}, f.backend.verifyTokens)

	assert.True(t, f.svc.IsAdminLoggedIn())
	assert.True(t, f.svc.IsAdmin())
	require.NoError(t, f.svc.RequireAdmin())
	assert.False(t, f.svc.IsLoggedIn())

	ok, err := storage.GetJSON(ctx, f.kv, storage.KeyAdminUser, &session.Session{})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.AdminLogout(ctx))
	assert.False(t, f.svc.IsAdminLoggedIn())
	assert.Nil(t, f.svc.AdminSession())
}

func TestAdminLogin_VerifyFailureStoresNothing(t *testing.T) {
	f := newFixture()
	f.backend.verifyErr = errors.New("not an admin")

	_, err := f.svc.AdminLogin(context.Background(), "boss@example.com", "pw")
	require.ErrorIs(t, err, f.backend.verifyErr)
	assert.False(t, f.svc.IsAdminLoggedIn())
	assert.Nil(t, f.svc.AdminSession())
}

func TestIsAdmin_UserRole(t *testing.T) {
	f := newFixture()
	f.backend.loginSession.User.Role = "admin"

	_, err := f.svc.Login(context.Background(), "ann@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, f.svc.IsAdmin())
	assert.False(t, f.svc.IsAdminLoggedIn())
}

func TestValidateAdminSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.admin.Save(ctx, &session.Session{
		AccessToken:  token(t, time.Now().Add(-time.Minute)),
		RefreshToken: "r",
		Verification: &session.Verification{RestaurantID: "rest-1"},
	}))
	f.backend.refreshErr = errors.New("expired")

	valid, err := f.svc.ValidateAdminSession(ctx)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.False(t, f.svc.IsAdminLoggedIn())
}
