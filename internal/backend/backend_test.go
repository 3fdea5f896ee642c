package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/domain/analytics"
	"github.com/xenking/resto-client/internal/domain/order"
	"github.com/xenking/resto-client/internal/domain/session"
	"github.com/xenking/resto-client/internal/storage/memory"
)

// --- Helpers ---

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, scope session.Scope) *apiclient.Client {
	t.Helper()
	store := session.NewStore(memory.New(), scope)
	require.NoError(t, store.Save(context.Background(), &session.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         session.User{ID: "u1"},
	}))
	c, err := apiclient.New(store, apiclient.Config{
		BaseURL: baseURL,
		Refresh: func(context.Context, string) (session.Tokens, error) {
			return session.Tokens{}, assert.AnError
		},
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Auth ---

func TestAuth_Login(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathLogin, r.URL.Path)
		var in credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ann@example.com", in.Email)
		assert.Equal(t, "secret", in.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  "a1",
			"refreshToken": "r1",
			"user":         map[string]any{"_id": "u1", "email": "ann@example.com", "name": "Ann", "role": "admin"},
		})
	})

	s, err := NewAuth(srv.URL, srv.Client(), "").Login(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a1", s.AccessToken)
	assert.Equal(t, "r1", s.RefreshToken)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "Ann", s.User.Name)
	assert.True(t, s.User.IsAdmin)
}

func TestAuth_LoginNestedData(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"access_token": "a1",
				"user":         map[string]any{"id": "u1", "email": "ann@example.com"},
			},
		})
	})

	s, err := NewAuth(srv.URL, srv.Client(), "").Login(context.Background(), "ann@example.com", "x")
	require.NoError(t, err)
	assert.Equal(t, "a1", s.AccessToken)
	assert.Empty(t, s.RefreshToken)
	assert.Equal(t, "u1", s.User.ID)
	assert.False(t, s.User.IsAdmin)
}

func TestAuth_LoginRejected(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	})

	_, err := NewAuth(srv.URL, srv.Client(), "").Login(context.Background(), "a", "b")
	require.Error(t, err)
	code, ok := apiclient.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAuth_GoogleLoginSendsClientID(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathGoogleLogin, r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "google-jwt", in["credential"])
		assert.Equal(t, "client-123", in["clientId"])
		writeJSON(w, http.StatusOK, map[string]any{"token": "a1", "user": map[string]any{"id": "u1"}})
	})

	a := NewAuth(srv.URL, srv.Client(), "client-123")
	s, err := a.GoogleLogin(context.Background(), "google-jwt")
	require.NoError(t, err)
	assert.Equal(t, "a1", s.AccessToken)

	_, err = a.GoogleLogin(context.Background(), "")
	require.Error(t, err)
}

func TestAuth_Refresh(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		switch r.URL.Path {
		case pathRefresh:
			assert.Equal(t, "r1", in["refreshToken"])
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "a2", "refreshToken": "r2"})
		case pathAdminRefresh:
			assert.Equal(t, "ar1", in["refreshToken"])
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "aa2"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	a := NewAuth(srv.URL, srv.Client(), "")

	tokens, err := a.RefreshUser(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, session.Tokens{Access: "a2", Refresh: "r2"}, tokens)

	tokens, err = a.RefreshAdmin(context.Background(), "ar1")
	require.NoError(t, err)
	assert.Equal(t, session.Tokens{Access: "aa2"}, tokens)
}

func TestAuth_RefreshCookieMode(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "a2"})
		w.WriteHeader(http.StatusNoContent)
	})

	tokens, err := NewAuth(srv.URL, srv.Client(), "").RefreshUser(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, session.Tokens{}, tokens)
}

func TestAuth_AdminLoginAndVerify(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathAdminLogin:
			writeJSON(w, http.StatusOK, map[string]any{
				"accessToken":  "admin-a",
				"refreshToken": "admin-r",
				"admin":        map[string]any{"id": "adm1", "email": "boss@example.com"},
			})
		case pathAdminVerify:
			assert.Equal(t, "Bearer admin-a", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{
				"admin": map[string]any{"restaurantId": "rest-1", "role": "owner", "permissions": []string{"analytics"}},
			})
		}
	})
	a := NewAuth(srv.URL, srv.Client(), "")
	ctx := context.Background()

	s, err := a.AdminLogin(ctx, "boss@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "adm1", s.User.ID)

	v, err := a.AdminVerify(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "rest-1", v.RestaurantID)
	assert.Equal(t, "owner", v.Role)
	assert.Equal(t, []string{"analytics"}, v.Permissions)
	assert.False(t, v.VerifiedAt.IsZero())
}

func TestAuth_Logout(t *testing.T) {
	var auth string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathLogout, r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, NewAuth(srv.URL, srv.Client(), "").Logout(context.Background(), "a1"))
	assert.Equal(t, "Bearer a1", auth)
}

// --- API ---

func TestAPI_Restaurants(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/restaurant":
			writeJSON(w, http.StatusOK, map[string]any{
				"restaurants": []map[string]any{{"id": "r1", "name": "Trattoria", "isOpen": true}},
			})
		case "/restaurant/r1/items":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "A", "name": "Margherita", "price": 5.5, "addons": []map[string]any{{"name": "olives", "price": "0.5"}}},
			})
		}
	})
	api := NewAPI(newClient(t, srv.URL, session.ScopeUser))
	ctx := context.Background()

	rs, err := api.Restaurants(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "Trattoria", rs[0].Name)
	assert.True(t, rs[0].IsOpen)

	items, err := api.MenuItems(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("5.5")))
	require.Len(t, items[0].Addons, 1)
	assert.True(t, items[0].Addons[0].Price.Equal(decimal.RequireFromString("0.5")))
}

func TestAPI_CreateOrder(t *testing.T) {
	for _, tc := range []struct {
		name string
		body any
		want string
	}{
		{name: "OrderID", body: map[string]any{"orderId": "o1"}, want: "o1"},
		{name: "MongoID", body: map[string]any{"_id": "o2"}, want: "o2"},
		{name: "Nested", body: map[string]any{"order": map[string]any{"_id": "o3"}}, want: "o3"},
		{name: "Numeric", body: map[string]any{"id": 42}, want: "42"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, pathOrders, r.URL.Path)
				var p order.Payload
				require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
				assert.Equal(t, map[string]int{"A": 2}, p.ProductsQuantityMap)
				writeJSON(w, http.StatusCreated, tc.body)
			})
			api := NewAPI(newClient(t, srv.URL, session.ScopeUser))

			id, err := api.CreateOrder(context.Background(), order.Payload{ProductsQuantityMap: map[string]int{"A": 2}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestAPI_CreateOrderWithoutID(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	_, err := NewAPI(newClient(t, srv.URL, session.ScopeUser)).CreateOrder(context.Background(), order.Payload{})
	require.Error(t, err)
}

func TestAPI_UpdateAndCancelOrder(t *testing.T) {
	var seen []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	api := NewAPI(newClient(t, srv.URL, session.ScopeUser))
	ctx := context.Background()

	require.NoError(t, api.UpdateOrder(ctx, "o1", order.Payload{}))
	require.NoError(t, api.CancelOrder(ctx, "o1"))
	assert.Equal(t, []string{"PUT /order/orders/o1", "DELETE /order/orders/o1"}, seen)
}

// --- Admin ---

func TestAdmin_Analytics(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-10-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-10-07", r.URL.Query().Get("to"))
		switch r.URL.Path {
		case "/order/admin/analytics/revenue":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"date": "2026-10-01", "revenue": "10.25", "orders": 1}},
			})
		case "/order/admin/analytics/orders":
			writeJSON(w, http.StatusOK, map[string]any{"stats": map[string]any{"total": 3, "completed": 2}})
		case "/order/admin/analytics/top-items":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, []map[string]any{{"itemId": "A", "name": "Margherita", "quantity": 7}})
		}
	})
	admin := NewAdmin(newClient(t, srv.URL, session.ScopeAdmin))
	ctx := context.Background()
	r := analytics.Range{
		From: mustDate(t, "2026-10-01"),
		To:   mustDate(t, "2026-10-07"),
	}

	points, err := admin.Revenue(ctx, r)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Revenue.Equal(decimal.RequireFromString("10.25")))

	stats, err := admin.OrderStats(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)

	top, err := admin.TopItems(ctx, r, 3)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 7, top[0].Quantity)
}

func TestAdmin_Forbidden(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "not your restaurant"})
	})
	admin := NewAdmin(newClient(t, srv.URL, session.ScopeAdmin))

	_, err := admin.Revenue(context.Background(), analytics.Range{})
	require.ErrorIs(t, err, apiclient.ErrForbidden)
}

func TestUnwrapList(t *testing.T) {
	for _, tc := range []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "Bare", body: `[1,2]`, want: `[1,2]`},
		{name: "Wrapped", body: `{"total":2,"items":[1,2]}`, want: `[1,2]`},
		{name: "SkipNonArray", body: `{"items":{"x":1},"data":[3]}`, want: `[3]`},
		{name: "Missing", body: `{"other":[1]}`, wantErr: true},
		{name: "Scalar", body: `"x"`, wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := unwrapList([]byte(tc.body), "items", "data")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(analytics.DateLayout, s)
	require.NoError(t, err)
	return d
}
