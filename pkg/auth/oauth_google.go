package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthConfig holds configuration for the Google provider.
type GoogleOAuthConfig struct {
	ClientID     string   `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string   `env:"GOOGLE_OAUTH_REDIRECT_URL"`
	Scopes       []string `env:"GOOGLE_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
}

// Enabled reports whether client credentials are configured.
func (c GoogleOAuthConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

type googleAdapter struct {
	conf        *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

// NewGoogleAdapter creates the Google provider adapter.
func NewGoogleAdapter(cfg GoogleOAuthConfig) ProviderAdapter {
	return &googleAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		userInfoURL: googleUserInfoURL,
	}
}

func (a *googleAdapter) Provider() Provider { return ProviderGoogle }

func (a *googleAdapter) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

func (a *googleAdapter) ResolveProfile(ctx context.Context, code string) (ProviderIdentity, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderIdentity{}, ErrInvalidCode
	}

	var u googleUser
	if err := fetchJSON(ctx, a.httpClient, a.userInfoURL, tok.AccessToken, nil, &u); err != nil {
		return ProviderIdentity{}, fmt.Errorf("fetch google user: %w", err)
	}
	if u.Email == "" {
		return ProviderIdentity{}, ErrNoPrimaryEmail
	}

	return ProviderIdentity{
		Provider:      ProviderGoogle,
		ProviderID:    u.ID,
		Email:         u.Email,
		EmailVerified: u.VerifiedEmail,
		DisplayName:   u.Name,
	}, nil
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// fetchJSON performs an authorized GET and decodes a 200 response into dst.
func fetchJSON(ctx context.Context, client *http.Client, url, accessToken string, header http.Header, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var _ ProviderAdapter = (*googleAdapter)(nil)
