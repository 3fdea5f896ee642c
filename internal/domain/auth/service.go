package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/resto-client/internal/domain/session"
)

// Service is the explicit session object of the client. It is initialized
// once on start, mutated on login and refresh, and destroyed on logout.
type Service struct {
	backend Backend
	user    *session.Store
	admin   *session.Store
	now     func() time.Time

	mu    sync.Mutex
	hooks []LogoutHook
}

// NewService creates an auth Service over the customer and admin stores.
func NewService(backend Backend, user, admin *session.Store, hooks ...LogoutHook) *Service {
	return &Service{
		backend: backend,
		user:    user,
		admin:   admin,
		now:     time.Now,
		hooks:   hooks,
	}
}

// OnLogout registers a hook that runs on every customer logout.
func (s *Service) OnLogout(h LogoutHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Init restores both sessions from storage.
func (s *Service) Init(ctx context.Context) error {
	u, err := s.user.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "restore user session")
	}
	a, err := s.admin.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "restore admin session")
	}
	zctx.From(ctx).Debug("Sessions restored",
		zap.Bool("user", u != nil),
		zap.Bool("admin", a != nil),
	)
	return nil
}

// Login signs the customer in with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*session.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password required")
	}
	sess, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, sess, "password")
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, r RegisterRequest) (*session.User, error) {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return nil, errors.New("email and password required")
	}
	sess, err := s.backend.Register(ctx, r)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, sess, "register")
}

// GoogleLogin signs the customer in with a Google ID credential.
func (s *Service) GoogleLogin(ctx context.Context, credential string) (*session.User, error) {
	sess, err := s.backend.GoogleLogin(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, sess, "google")
}

func (s *Service) start(ctx context.Context, sess *session.Session, method string) (*session.User, error) {
	if err := s.user.Save(ctx, sess); err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Logged in",
		zap.String("user_id", sess.User.ID),
		zap.String("method", method),
	)
	u := sess.User
	return &u, nil
}

// Logout destroys the customer session and runs the logout hooks. The
// backend is told about it on a best-effort basis.
func (s *Service) Logout(ctx context.Context) error {
	lg := zctx.From(ctx)
	if s.user.Active() {
		if err := s.backend.Logout(ctx, s.user.AccessToken()); err != nil {
			lg.Warn("Backend logout failed", zap.Error(err))
		}
	}
	if err := s.user.Clear(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.mu.Unlock()

	var first error
	for _, h := range hooks {
		if err := h(ctx); err != nil && first == nil {
			first = errors.Wrap(err, "logout hook")
		}
	}
	lg.Info("Logged out")
	return first
}

// IsLoggedIn reports whether a customer session is held.
func (s *Service) IsLoggedIn() bool { return s.user.Active() }

// User returns the signed-in customer, or nil.
func (s *Service) User() *session.User {
	sess := s.user.Current()
	if sess == nil {
		return nil
	}
	return &sess.User
}

// IsAdmin reports whether the client holds admin rights: either a verified
// admin session or a customer account with the admin role.
func (s *Service) IsAdmin() bool {
	if s.IsAdminLoggedIn() {
		return true
	}
	u := s.User()
	return u != nil && (u.IsAdmin || u.Role == "admin")
}

// ValidateSession checks the customer access token. An expired token is
// refreshed when possible; otherwise the session is cleared. It reports
// whether a usable session remains.
func (s *Service) ValidateSession(ctx context.Context) (bool, error) {
	return s.validate(ctx, s.user, s.backend.RefreshUser)
}

// ValidateAdminSession is ValidateSession for the admin scope.
func (s *Service) ValidateAdminSession(ctx context.Context) (bool, error) {
	return s.validate(ctx, s.admin, s.backend.RefreshAdmin)
}

func (s *Service) validate(
	ctx context.Context,
	store *session.Store,
	refresh func(context.Context, string) (session.Tokens, error),
) (bool, error) {
	sess := store.Current()
	if sess == nil {
		return false, nil
	}
	if !sess.AccessExpired(s.now()) {
		return true, nil
	}

	lg := zctx.From(ctx).With(zap.String("scope", string(store.Scope())))
	if sess.RefreshToken != "" {
		tokens, err := refresh(ctx, sess.RefreshToken)
		if err == nil && tokens.Access != "" {
			if err := store.UpdateTokens(ctx, tokens); err != nil {
				return false, err
			}
			lg.Debug("Expired access token refreshed")
			return true, nil
		}
		lg.Info("Refresh of expired session failed", zap.Error(err))
	}

	if err := store.Clear(ctx); err != nil {
		return false, err
	}
	lg.Info("Expired session cleared")
	return false, nil
}

// AdminLogin signs the admin in and fetches the verification payload. The
// admin session is stored only when both steps succeed.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password required")
	}
	sess, err := s.backend.AdminLogin(ctx, email, password)
	if err != nil {
		return nil, err
	}
	v, err := s.backend.AdminVerify(ctx, sess.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "verify admin")
	}
	sess.Verification = v
	if err := s.admin.Save(ctx, sess); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Admin logged in",
		zap.String("user_id", sess.User.ID),
		zap.String("restaurant_id", v.RestaurantID),
	)
	return s.admin.Current(), nil
}

// AdminLogout destroys the admin session. The customer session is kept.
func (s *Service) AdminLogout(ctx context.Context) error {
	if err := s.admin.Clear(ctx); err != nil {
		return err
	}
	zctx.From(ctx).Info("Admin logged out")
	return nil
}

// IsAdminLoggedIn reports whether a verified admin session is held.
func (s *Service) IsAdminLoggedIn() bool {
	sess := s.admin.Current()
	return sess != nil && sess.Verification != nil
}

// AdminSession returns a copy of the admin session, or nil.
func (s *Service) AdminSession() *session.Session { return s.admin.Current() }

// RequireUser guards customer-only operations.
func (s *Service) RequireUser() error {
	if !s.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	return nil
}

// RequireAdmin guards admin-only operations.
func (s *Service) RequireAdmin() error {
	if !s.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}
