package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHubOAuthConfig holds configuration for the GitHub provider.
type GitHubOAuthConfig struct {
	ClientID     string   `env:"GITHUB_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	RedirectURL  string   `env:"GITHUB_OAUTH_REDIRECT_URL"`
	Scopes       []string `env:"GITHUB_OAUTH_SCOPES" envSeparator:"," envDefault:"read:user,user:email"`
}

// Enabled reports whether client credentials are configured.
func (c GitHubOAuthConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

type githubAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
	apiURL     string
}

// NewGitHubAdapter creates the GitHub provider adapter.
func NewGitHubAdapter(cfg GitHubOAuthConfig) ProviderAdapter {
	return &githubAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     githubAPIURL,
	}
}

func (a *githubAdapter) Provider() Provider { return ProviderGitHub }

func (a *githubAdapter) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

// ResolveProfile reads the user id from /user and the address from
// /user/emails, which carries verification status. A primary verified
// address wins over any other verified one.
func (a *githubAdapter) ResolveProfile(ctx context.Context, code string) (ProviderIdentity, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderIdentity{}, ErrInvalidCode
	}

	header := http.Header{"Accept": []string{"application/vnd.github.v3+json"}}

	var u githubUser
	if err := fetchJSON(ctx, a.httpClient, a.apiURL+"/user", tok.AccessToken, header, &u); err != nil {
		return ProviderIdentity{}, fmt.Errorf("fetch github user: %w", err)
	}

	var emails []githubEmail
	if err := fetchJSON(ctx, a.httpClient, a.apiURL+"/user/emails", tok.AccessToken, header, &emails); err != nil {
		return ProviderIdentity{}, fmt.Errorf("fetch github emails: %w", err)
	}

	email := pickGitHubEmail(emails)
	if email == "" {
		return ProviderIdentity{}, ErrNoPrimaryEmail
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return ProviderIdentity{
		Provider:      ProviderGitHub,
		ProviderID:    strconv.FormatInt(u.ID, 10),
		Email:         email,
		EmailVerified: true,
		DisplayName:   name,
	}, nil
}

func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

var _ ProviderAdapter = (*githubAdapter)(nil)
