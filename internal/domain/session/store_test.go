package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/resto-client/internal/storage"
	"github.com/xenking/resto-client/internal/storage/memory"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	st := NewStore(kv, ScopeUser)

	sess, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.False(t, st.Active())

	require.NoError(t, st.Save(ctx, &Session{
		AccessToken:  "a1",
		RefreshToken: "r1",
		User:         User{ID: "u1", Email: "a@b.c"},
	}))
	assert.True(t, st.Active())
	assert.Equal(t, "a1", st.AccessToken())

	// A fresh store over the same storage sees the persisted session.
	reloaded := NewStore(kv, ScopeUser)
	sess, err = reloaded.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "r1", sess.RefreshToken)
	assert.Equal(t, "u1", sess.User.ID)

	require.NoError(t, st.Clear(ctx))
	assert.False(t, st.Active())
	_, err = kv.Get(ctx, storage.KeyUser)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	user := NewStore(kv, ScopeUser)
	admin := NewStore(kv, ScopeAdmin)

	require.NoError(t, user.Save(ctx, &Session{AccessToken: "u"}))
	require.NoError(t, admin.Save(ctx, &Session{AccessToken: "adm"}))
	require.NoError(t, user.Clear(ctx))

	_, err := kv.Get(ctx, storage.KeyAdminUser)
	require.NoError(t, err)
	assert.Equal(t, "adm", admin.AccessToken())
}

func TestStore_UpdateTokens(t *testing.T) {
	ctx := context.Background()
	st := NewStore(memory.New(), ScopeUser)

	require.ErrorIs(t, st.UpdateTokens(ctx, Tokens{Access: "x"}), ErrNoSession)

	require.NoError(t, st.Save(ctx, &Session{AccessToken: "a1", RefreshToken: "r1", User: User{ID: "u1"}}))

	// Empty refresh keeps the old one.
	require.NoError(t, st.UpdateTokens(ctx, Tokens{Access: "a2"}))
	assert.Equal(t, "a2", st.AccessToken())
	assert.Equal(t, "r1", st.RefreshToken())

	require.NoError(t, st.UpdateTokens(ctx, Tokens{Access: "a3", Refresh: "r3"}))
	assert.Equal(t, "r3", st.RefreshToken())
	assert.Equal(t, "u1", st.Current().User.ID)
}

func TestStore_CurrentIsCopy(t *testing.T) {
	ctx := context.Background()
	st := NewStore(memory.New(), ScopeAdmin)
	require.NoError(t, st.Save(ctx, &Session{
		AccessToken:  "a",
		Verification: &Verification{RestaurantID: "r1", Permissions: []string{"analytics"}},
	}))

	c := st.Current()
	c.AccessToken = "mutated"
	c.Verification.Permissions[0] = "mutated"

	assert.Equal(t, "a", st.AccessToken())
	assert.Equal(t, "analytics", st.Current().Verification.Permissions[0])
}

func TestSession_AccessExpiry(t *testing.T) {
	now := time.Now()

	expired := &Session{AccessToken: signedToken(t, now.Add(-time.Minute))}
	assert.True(t, expired.AccessExpired(now))

	valid := &Session{AccessToken: signedToken(t, now.Add(time.Hour))}
	assert.False(t, valid.AccessExpired(now))
	exp, ok := valid.AccessExpiry()
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(time.Hour), exp, time.Second)

	opaque := &Session{AccessToken: "not-a-jwt"}
	assert.False(t, opaque.AccessExpired(now))

	var none *Session
	_, ok = none.AccessExpiry()
	assert.False(t, ok)
}
