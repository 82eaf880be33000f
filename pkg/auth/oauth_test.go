package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAdapter struct {
	provider Provider
	profile  ProviderIdentity
	err      error
}

func (f *fakeAdapter) Provider() Provider { return f.provider }

func (f *fakeAdapter) AuthURL(state string) string {
	return "https://provider.test/auth?state=" + url.QueryEscape(state)
}

func (f *fakeAdapter) ResolveProfile(_ context.Context, code string) (ProviderIdentity, error) {
	if code == "bad" {
		return ProviderIdentity{}, ErrInvalidCode
	}
	return f.profile, f.err
}

func newFlow(t *testing.T, adapter *fakeAdapter, opts ...Option) (*OAuthFlow, *testEnv) {
	t.Helper()
	env := newTestEnv(t, opts...)
	return NewOAuthFlow(env.svc, env.store, []ProviderAdapter{adapter}, env.opts...), env
}

func startFlow(t *testing.T, flow *OAuthFlow, p Provider) string {
	t.Helper()
	authURL, state, err := flow.AuthURL(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, state)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	require.Equal(t, state, u.Query().Get("state"))
	return state
}

func TestOAuthFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	google := &fakeAdapter{provider: ProviderGoogle, profile: ProviderIdentity{
		ProviderID: "g-9", Email: "Flow@Example.com", EmailVerified: true, DisplayName: "Flow",
	}}

	t.Run("signs in and reuses the account", func(t *testing.T) {
		t.Parallel()
		flow, _ := newFlow(t, google)

		acc, err := flow.Callback(ctx, ProviderGoogle, "code", startFlow(t, flow, ProviderGoogle), nil)
		require.NoError(t, err)
		assert.Equal(t, "flow@example.com", acc.Email)

		again, err := flow.Callback(ctx, ProviderGoogle, "code", startFlow(t, flow, ProviderGoogle), nil)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, again.ID)
	})

	t.Run("state is single use", func(t *testing.T) {
		t.Parallel()
		flow, _ := newFlow(t, google)
		state := startFlow(t, flow, ProviderGoogle)

		_, err := flow.Callback(ctx, ProviderGoogle, "code", state, nil)
		require.NoError(t, err)
		_, err = flow.Callback(ctx, ProviderGoogle, "code", state, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = flow.Callback(ctx, ProviderGoogle, "code", "", nil)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("state expires", func(t *testing.T) {
		t.Parallel()
		flow, env := newFlow(t, google)
		state := startFlow(t, flow, ProviderGoogle)
		env.clock.Advance(10 * time.Minute)

		_, err := flow.Callback(ctx, ProviderGoogle, "code", state, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("links to signed-in account", func(t *testing.T) {
		t.Parallel()
		flow, env := newFlow(t, google)
		env.acceptMail()
		me := env.registerActive(t, "me@example.com")

		acc, err := flow.Callback(ctx, ProviderGoogle, "code", startFlow(t, flow, ProviderGoogle), &me.ID)
		require.NoError(t, err)
		assert.Equal(t, me.ID, acc.ID)
		assert.Equal(t, "me@example.com", acc.Email)
		assert.True(t, acc.HasProvider(ProviderGoogle))
	})

	t.Run("rejects unverified email unless allowed", func(t *testing.T) {
		t.Parallel()
		unverified := &fakeAdapter{provider: ProviderGoogle, profile: ProviderIdentity{
			ProviderID: "g-10", Email: "u@example.com",
		}}

		flow, _ := newFlow(t, unverified)
		_, err := flow.Callback(ctx, ProviderGoogle, "code", startFlow(t, flow, ProviderGoogle), nil)
		assert.ErrorIs(t, err, ErrUnverifiedEmail)

		lax, _ := newFlow(t, unverified, WithVerifiedOnly(false))
		_, err = lax.Callback(ctx, ProviderGoogle, "code", startFlow(t, lax, ProviderGoogle), nil)
		assert.NoError(t, err)
	})

	t.Run("provider errors", func(t *testing.T) {
		t.Parallel()
		broken := &fakeAdapter{provider: ProviderGoogle, err: errors.New("api down")}
		flow, _ := newFlow(t, broken)

		_, err := flow.Callback(ctx, ProviderGoogle, "bad", startFlow(t, flow, ProviderGoogle), nil)
		assert.ErrorIs(t, err, ErrInvalidCode)

		_, err = flow.Callback(ctx, ProviderGoogle, "code", startFlow(t, flow, ProviderGoogle), nil)
		assert.ErrorIs(t, err, ErrUnavailable)

		_, _, err = flow.AuthURL(ctx, ProviderGitHub)
		assert.ErrorIs(t, err, ErrProviderNotEnabled)
		_, _, err = flow.AuthURL(ctx, Provider("myspace"))
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("state store failure", func(t *testing.T) {
		t.Parallel()
		states := &MockStateStore{}
		states.On("StoreState", mock.Anything, mock.Anything, 10*time.Minute).Return(errors.New("redis down"))
		flow := NewOAuthFlow(&Linker{}, states, []ProviderAdapter{google})

		_, _, err := flow.AuthURL(ctx, ProviderGoogle)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestGitHubAdapter(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 4242, "login": "octo"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "unverified@example.com", "primary": true, "verified": false},
			{"email": "octo@example.com", "primary": false, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewGitHubAdapter(GitHubOAuthConfig{ClientID: "id", ClientSecret: "secret"}).(*githubAdapter)
	a.conf.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/login/oauth/authorize",
		TokenURL:  srv.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	a.apiURL = srv.URL
	a.httpClient = srv.Client()

	assert.Contains(t, a.AuthURL("st"), "state=st")

	p, err := a.ResolveProfile(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, ProviderGitHub, p.Provider)
	assert.Equal(t, "4242", p.ProviderID)
	assert.Equal(t, "octo@example.com", p.Email)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "octo", p.DisplayName)

	_, err = a.ResolveProfile(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestGoogleAdapter(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"g-token","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "1177", "email": "g@example.com", "verified_email": true, "name": "G User",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewGoogleAdapter(GoogleOAuthConfig{ClientID: "id", ClientSecret: "secret"}).(*googleAdapter)
	a.conf.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	a.userInfoURL = srv.URL + "/userinfo"
	a.httpClient = srv.Client()

	p, err := a.ResolveProfile(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, ProviderIdentity{
		Provider: ProviderGoogle, ProviderID: "1177", Email: "g@example.com", EmailVerified: true, DisplayName: "G User",
	}, p)
}
