// Package oauthpw is an identity.Provider for OAuth 2.0 servers that support
// the resource-owner password grant (RFC 6749 section 4.3).
//
// The session is the token: CreateSession exchanges email and password for
// one, CurrentSession resolves it through the userinfo endpoint, and
// DeleteSession forgets it (revoking it first when a revocation endpoint is
// configured). Tokens are refreshed by golang.org/x/oauth2 as needed.
package oauthpw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/model"
)

// Config describes the authorization server.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserInfoURL  string
	RevokeURL    string // optional
	Scopes       []string
	Timeout      time.Duration
}

// Provider holds one browser session's token.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	revokeURL   string
	http        *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

var _ identity.Provider = (*Provider)(nil)

func New(cfg Config) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		revokeURL:   cfg.RevokeURL,
		http:        &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory returns an identity.Factory producing a fresh Provider per session.
func Factory(cfg Config) identity.Factory {
	return func() (identity.Provider, error) {
		return New(cfg), nil
	}
}

// userInfo is the OpenID Connect userinfo response. created_at is a
// non-standard claim some servers add; updated_at is the standard fallback.
type userInfo struct {
	Subject   string          `json:"sub"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	CreatedAt json.RawMessage `json:"created_at"`
	UpdatedAt json.RawMessage `json:"updated_at"`
}

func (p *Provider) CreateSession(ctx context.Context, email, password string) error {
	tok, err := p.oauth.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			msg := re.ErrorDescription
			if msg == "" {
				msg = "Invalid credentials"
			}
			return apperror.InvalidCredentials(msg)
		}
		return fmt.Errorf("oauthpw: password grant: %w", err)
	}

	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
	return nil
}

func (p *Provider) CurrentSession(ctx context.Context) (model.Identity, error) {
	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()
	if tok == nil {
		return model.Identity{}, apperror.NotAuthenticated("no active session")
	}

	// TokenSource refreshes expired tokens; the refreshed token is kept.
	ts := p.oauth.TokenSource(p.clientContext(ctx), tok)
	client := oauth2.NewClient(p.clientContext(ctx), ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("oauthpw: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			p.forget()
			return model.Identity{}, apperror.NotAuthenticated("session expired")
		}
		return model.Identity{}, fmt.Errorf("oauthpw: calling userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		p.forget()
		return model.Identity{}, apperror.NotAuthenticated("session expired")
	}
	if resp.StatusCode != http.StatusOK {
		return model.Identity{}, apperror.Upstream("GET userinfo", resp.StatusCode, "")
	}

	if fresh, err := ts.Token(); err == nil {
		p.mu.Lock()
		if p.token != nil {
			p.token = fresh
		}
		p.mu.Unlock()
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return model.Identity{}, fmt.Errorf("oauthpw: decoding userinfo: %w", err)
	}
	if info.Subject == "" {
		return model.Identity{}, fmt.Errorf("oauthpw: userinfo has no subject")
	}

	return model.Identity{
		ID:        info.Subject,
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: claimTime(info.CreatedAt, info.UpdatedAt),
	}, nil
}

// DeleteSession revokes the token when possible and always forgets it.
func (p *Provider) DeleteSession(ctx context.Context) error {
	p.mu.Lock()
	tok := p.token
	p.token = nil
	p.mu.Unlock()

	if tok == nil || p.revokeURL == "" {
		return nil
	}

	form := url.Values{
		"token":           {tok.AccessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {p.oauth.ClientID},
	}
	if p.oauth.ClientSecret != "" {
		form.Set("client_secret", p.oauth.ClientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauthpw: building revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauthpw: revoking token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperror.Upstream("POST revoke", resp.StatusCode, "")
	}
	return nil
}

func (p *Provider) forget() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

// clientContext makes x/oauth2 use our HTTP client for token calls.
func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

// claimTime reads a time claim given as Unix seconds or an RFC 3339 string.
func claimTime(claims ...json.RawMessage) time.Time {
	for _, raw := range claims {
		if len(raw) == 0 {
			continue
		}
		var secs int64
		if err := json.Unmarshal(raw, &secs); err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC()
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
