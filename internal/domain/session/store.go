package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/storage"
)

// ErrNoSession is returned by UpdateTokens when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Store is the token store of one scope. It keeps the current session in
// memory and writes every change through to storage.
type Store struct {
	kv    storage.KV
	scope Scope

	mu      sync.RWMutex
	current *Session
}

// NewStore returns an empty store. Call Load to restore a persisted session.
func NewStore(kv storage.KV, scope Scope) *Store {
	return &Store{kv: kv, scope: scope}
}

// Scope returns the credential scope of the store.
func (s *Store) Scope() Scope { return s.scope }

// Load restores the persisted session, if any, and returns it.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	var sess Session
	ok, err := storage.GetJSON(ctx, s.kv, s.scope.Key(), &sess)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.current = nil
		return nil, nil
	}
	s.current = &sess
	return sess.clone(), nil
}

// Current returns a copy of the in-memory session, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// AccessToken returns the current access token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.RefreshToken
}

// Active reports whether a session is held.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Save replaces the session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.SetJSON(ctx, s.kv, s.scope.Key(), sess); err != nil {
		return errors.Wrap(err, "save session")
	}
	s.current = sess.clone()
	return nil
}

// UpdateTokens stores refreshed credentials, keeping the user identity.
func (s *Store) UpdateTokens(ctx context.Context, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoSession
	}
	next := s.current.clone()
	if t.Access != "" {
		next.AccessToken = t.Access
	}
	if t.Refresh != "" {
		next.RefreshToken = t.Refresh
	}
	if err := storage.SetJSON(ctx, s.kv, s.scope.Key(), next); err != nil {
		return errors.Wrap(err, "save refreshed tokens")
	}
	s.current = next
	return nil
}

// Clear destroys the session both in memory and in storage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := s.kv.Delete(ctx, s.scope.Key()); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
