package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/accountkit/modules/account"
	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/cookie"
	"github.com/dmitrymomot/accountkit/pkg/hasher"
	"github.com/dmitrymomot/accountkit/pkg/jwt"
	"github.com/dmitrymomot/accountkit/pkg/ratelimiter"
)

const (
	testPassword  = "Str0ng!Passw0rd"
	testClientURL = "https://app.test"
)

// MockMailer is a mock implementation of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg auth.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockMailer) last(t *testing.T) auth.Message {
	t.Helper()
	require.NotEmpty(t, m.Calls, "no message sent")
	return m.Calls[len(m.Calls)-1].Arguments.Get(1).(auth.Message)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAdapter struct {
	provider auth.Provider
	profile  auth.ProviderIdentity
}

func (f fakeAdapter) Provider() auth.Provider { return f.provider }

func (f fakeAdapter) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (f fakeAdapter) ResolveProfile(_ context.Context, code string) (auth.ProviderIdentity, error) {
	if code != "good" {
		return auth.ProviderIdentity{}, auth.ErrInvalidCode
	}
	return f.profile, nil
}

type harness struct {
	router  http.Handler
	mailer  *MockMailer
	clock   *clock
	svc     *auth.Service
	flow    *auth.OAuthFlow
	cookies *cookie.Manager
}

func (h *harness) handler(t *testing.T, opts ...account.Option) *account.Handler {
	t.Helper()
	return account.New(h.svc, h.cookies, "jwt", append([]account.Option{account.WithOAuth(h.flow)}, opts...)...)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := auth.NewMemoryStore()

	signer, err := jwt.New([]byte("handler-test-signing-key-0123456789"), jwt.WithTTL(time.Hour), jwt.WithClock(clk.Now))
	require.NoError(t, err)

	opts := []auth.Option{
		auth.WithClock(clk.Now),
		auth.WithHasher(hasher.NewBcrypt(bcrypt.MinCost)),
		auth.WithClientURL(testClientURL),
	}
	mailer := &MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	sessions := auth.NewSessionIssuer(store, signer, opts...)
	svc := auth.NewService(store, mailer, sessions, opts...)
	flow := auth.NewOAuthFlow(svc, store, []auth.ProviderAdapter{fakeAdapter{
		provider: auth.ProviderGoogle,
		profile: auth.ProviderIdentity{
			Provider:      auth.ProviderGoogle,
			ProviderID:    "g-123",
			Email:         "oauth@example.com",
			EmailVerified: true,
			DisplayName:   "OAuth User",
		},
	}}, opts...)

	cookies, err := cookie.New([]string{"cookie-secret-0123456789abcdef0123"})
	require.NoError(t, err)

	h := &harness{mailer: mailer, clock: clk, svc: svc, flow: flow, cookies: cookies}
	h.router = h.handler(t).Routes()
	return h
}

type response struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Data    struct {
		User struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Email       string   `json:"email"`
			Active      bool     `json:"active"`
			HasPassword bool     `json:"has_password"`
			Providers   []string `json:"providers"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Field string `json:"field"`
	} `json:"errors"`
}

type reqOpt func(*http.Request)

func bearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookies(cs ...*http.Cookie) reqOpt {
	return func(r *http.Request) {
		for _, c := range cs {
			r.AddCookie(c)
		}
	}
}

func (h *harness) do(t *testing.T, method, target string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func opaqueFrom(t *testing.T, link string) string {
	t.Helper()
	i := strings.LastIndex(link, "/")
	require.Positive(t, i)
	return link[i+1:]
}

// activeSession registers and activates an account and returns its token.
func (h *harness) activeSession(t *testing.T, email string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Jane", "email": email, "password": testPassword, "passwordConfirm": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/activate/"+opaqueFrom(t, h.mailer.last(t).Link), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec).Token
}

func TestRegisterAndActivate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Jane", "email": "Jane@Example.com", "password": testPassword, "passwordConfirm": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "jane@example.com", body.Data.User.Email)
	assert.False(t, body.Data.User.Active)
	assert.Empty(t, body.Token)
	assert.NotContains(t, rec.Body.String(), "password\":\"")

	msg := h.mailer.last(t)
	assert.Equal(t, auth.MessageActivation, msg.Kind)

	rec = h.do(t, http.MethodGet, "/activate/"+opaqueFrom(t, msg.Link), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.True(t, body.Data.User.Active)
	assert.NotEmpty(t, body.Token)

	c := cookieNamed(rec, "jwt")
	require.NotNil(t, c)
	assert.Equal(t, body.Token, c.Value)
	assert.True(t, c.HttpOnly)

	t.Run("token is single use", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/activate/"+opaqueFrom(t, msg.Link), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "token_invalid", decode(t, rec).Code)
	})
}

func TestRegister_Failures(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.activeSession(t, "taken@example.com")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"mismatch", map[string]string{"name": "A", "email": "a@example.com", "password": testPassword, "passwordConfirm": "Other!Passw0rd"}, http.StatusUnprocessableEntity, "invalid"},
		{"weak", map[string]string{"name": "A", "email": "a@example.com", "password": "short", "passwordConfirm": "short"}, http.StatusUnprocessableEntity, "invalid"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": testPassword, "passwordConfirm": testPassword}, http.StatusUnprocessableEntity, "invalid"},
		{"taken", map[string]string{"name": "A", "email": "TAKEN@example.com", "password": testPassword, "passwordConfirm": testPassword}, http.StatusConflict, "already_exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/register", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, "fail", body.Status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	t.Run("not json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/login", map[string]string{"email": "a@example.com", "role": "admin"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/nowhere", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "fail", decode(t, rec).Status)
	})
}

func TestLoginAndSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.activeSession(t, "login@example.com")

	rec := h.do(t, http.MethodPost, "/login", map[string]string{"email": "login@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/login", map[string]string{"email": "login@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode(t, rec).Token
	sessionCookie := cookieNamed(rec, "jwt")
	require.NotNil(t, sessionCookie)

	t.Run("bearer", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/me", nil, bearer(tok))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "login@example.com", decode(t, rec).Data.User.Email)
	})

	t.Run("cookie", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/me", nil, withCookies(sessionCookie))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decode(t, rec).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/me", nil, bearer("not-a-jwt"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("already authenticated", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/login", map[string]string{"email": "login@example.com", "password": testPassword}, bearer(tok))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "already_authenticated", decode(t, rec).Code)
	})

	t.Run("logout", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/logout", nil, bearer(tok))
		assert.Equal(t, http.StatusOK, rec.Code)
		c := cookieNamed(rec, "jwt")
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	})
}

func TestLogin_Inactive(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Jane", "email": "idle@example.com", "password": testPassword, "passwordConfirm": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodPost, "/login", map[string]string{"email": "idle@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "inactive", decode(t, rec).Code)

	rec = h.do(t, http.MethodPost, "/activate/resend", map[string]string{"email": "idle@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.MessageActivation, h.mailer.last(t).Kind)
}

func TestForgotAndResetPassword(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	oldTok := h.activeSession(t, "reset@example.com")

	unknown := h.do(t, http.MethodPost, "/forgot-password", map[string]string{"email": "ghost@example.com"})
	known := h.do(t, http.MethodPost, "/forgot-password", map[string]string{"email": "reset@example.com"})
	require.Equal(t, http.StatusOK, unknown.Code)
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, unknown.Body.String(), known.Body.String())

	msg := h.mailer.last(t)
	require.Equal(t, auth.MessagePasswordReset, msg.Kind)

	h.clock.Advance(2 * time.Second)
	newPassword := "N3w!Passw0rdX"
	rec := h.do(t, http.MethodPatch, "/reset-password/"+opaqueFrom(t, msg.Link), map[string]string{
		"password": newPassword, "passwordConfirm": newPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec).Token)

	rec = h.do(t, http.MethodGet, "/me", nil, bearer(oldTok))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session_superseded", decode(t, rec).Code)

	rec = h.do(t, http.MethodPost, "/login", map[string]string{"email": "reset@example.com", "password": newPassword})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.activeSession(t, "me@example.com")

	rec := h.do(t, http.MethodPatch, "/me", map[string]string{"name": "  Janet  "}, bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Janet", decode(t, rec).Data.User.Name)

	h.clock.Advance(2 * time.Second)
	newPassword := "An0ther!Passw0rd"
	rec = h.do(t, http.MethodPatch, "/me/password", map[string]string{
		"passwordCurrent": testPassword, "password": newPassword, "passwordConfirm": newPassword,
	}, bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fresh := decode(t, rec).Token
	require.NotEmpty(t, fresh)

	rec = h.do(t, http.MethodGet, "/me", nil, bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.clock.Advance(2 * time.Second)
	rec = h.do(t, http.MethodPatch, "/me/email", map[string]string{"email": "new@example.com", "password": newPassword}, bearer(fresh))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "new@example.com", body.Data.User.Email)
	assert.Equal(t, auth.MessageEmailChanged, h.mailer.last(t).Kind)
	assert.Equal(t, "me@example.com", h.mailer.last(t).To)

	rec = h.do(t, http.MethodDelete, "/me/identities/google", nil, bearer(body.Token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodDelete, "/me/identities/myspace", nil, bearer(body.Token))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func (h *harness) startOAuth(t *testing.T, provider string, opts ...reqOpt) (state string, stateCookie *http.Cookie) {
	t.Helper()
	rec := h.do(t, http.MethodGet, "/oauth/"+provider, nil, opts...)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state = loc.Query().Get("state")
	require.NotEmpty(t, state)

	stateCookie = cookieNamed(rec, "oauth_state")
	require.NotNil(t, stateCookie)
	return state, stateCookie
}

func TestOAuth(t *testing.T) {
	t.Parallel()

	t.Run("sign in creates account", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		state, sc := h.startOAuth(t, "google")

		rec := h.do(t, http.MethodGet, "/oauth/google/callback?code=good&state="+url.QueryEscape(state), nil, withCookies(sc))
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/profile", rec.Header().Get("Location"))
		session := cookieNamed(rec, "jwt")
		require.NotNil(t, session)

		rec = h.do(t, http.MethodGet, "/me", nil, bearer(session.Value))
		require.Equal(t, http.StatusOK, rec.Code)
		user := decode(t, rec).Data.User
		assert.Equal(t, "oauth@example.com", user.Email)
		assert.True(t, user.Active)
		assert.False(t, user.HasPassword)
		assert.Equal(t, []string{"google"}, user.Providers)

		t.Run("last credential cannot be unlinked", func(t *testing.T) {
			rec := h.do(t, http.MethodDelete, "/me/identities/google", nil, bearer(session.Value))
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "last_credential", decode(t, rec).Code)
		})
	})

	t.Run("state replay fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		state, sc := h.startOAuth(t, "google")
		target := "/oauth/google/callback?code=good&state=" + url.QueryEscape(state)

		rec := h.do(t, http.MethodGet, target, nil, withCookies(sc))
		require.Equal(t, "/profile", rec.Header().Get("Location"))

		rec = h.do(t, http.MethodGet, target, nil, withCookies(sc))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?error=token_invalid", rec.Header().Get("Location"))
	})

	t.Run("state not bound to browser", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		state, _ := h.startOAuth(t, "google")

		rec := h.do(t, http.MethodGet, "/oauth/google/callback?code=good&state="+url.QueryEscape(state), nil)
		assert.Equal(t, "/login?error=token_invalid", rec.Header().Get("Location"))
	})

	t.Run("bad code", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		state, sc := h.startOAuth(t, "google")

		rec := h.do(t, http.MethodGet, "/oauth/google/callback?code=bad&state="+url.QueryEscape(state), nil, withCookies(sc))
		assert.Equal(t, "/login?error=invalid_credential", rec.Header().Get("Location"))
	})

	t.Run("logged in caller links", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		tok := h.activeSession(t, "owner@example.com")
		state, sc := h.startOAuth(t, "google", bearer(tok))

		rec := h.do(t, http.MethodGet, "/oauth/google/callback?code=good&state="+url.QueryEscape(state), nil, withCookies(sc), bearer(tok))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/profile", rec.Header().Get("Location"))

		rec = h.do(t, http.MethodGet, "/me", nil, bearer(tok))
		require.Equal(t, http.StatusOK, rec.Code)
		user := decode(t, rec).Data.User
		assert.Equal(t, "owner@example.com", user.Email)
		assert.Equal(t, []string{"google"}, user.Providers)

		rec = h.do(t, http.MethodDelete, "/me/identities/google", nil, bearer(tok))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode(t, rec).Data.User.Providers)
	})

	t.Run("provider errors", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec := h.do(t, http.MethodGet, "/oauth/facebook", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = h.do(t, http.MethodGet, "/oauth/myspace", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(0), ratelimiter.Config{
		Capacity: 2, RefillRate: 1, RefillInterval: time.Hour,
	})
	require.NoError(t, err)
	h.router = h.handler(t, account.WithRateLimiter(limiter)).Routes()

	body := map[string]string{"email": "who@example.com", "password": "nope"}
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/login", body).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/login", body).Code)

	rec := h.do(t, http.MethodPost, "/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other routes have their own bucket
	rec = h.do(t, http.MethodPost, "/forgot-password", map[string]string{"email": "who@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
