package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	GoogleAuthURL = "https://accounts.google.com/o/oauth2/auth"
	DefaultScope  = "email profile"
)

type OAuthConfig struct {
	ClientID    string
	RedirectURI string
	AuthURL     string
	Scope       string
}

// LoginURL is where the user must be sent to sign in. Invites always go
// through the backend login so it can bind the account. Without an OAuth
// client id the backend login is used as well.
func (s *Session) LoginURL(invite string) string {
	if strings.TrimSpace(invite) != "" || strings.TrimSpace(s.oauth.ClientID) == "" {
		return s.backend.LegacyLoginURL(invite)
	}
	authURL := s.oauth.AuthURL
	if authURL == "" {
		authURL = GoogleAuthURL
	}
	scope := s.oauth.Scope
	if scope == "" {
		scope = DefaultScope
	}
	return authURL + "?client_id=" + url.QueryEscape(s.oauth.ClientID) +
		"&redirect_uri=" + url.QueryEscape(s.oauth.RedirectURI) +
		"&response_type=code" +
		"&scope=" + url.PathEscape(scope) +
		"&access_type=offline"
}

// Outcome is the result of an OAuth callback.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeNoCode      Outcome = "no_code"
	OutcomeLoginFailed Outcome = "login_failed"
	OutcomeServerFail  Outcome = "server_fail"
)

// RedirectPath is where the browser goes after the callback page.
func (o Outcome) RedirectPath() string {
	if o == OutcomeSuccess {
		return "/ranking"
	}
	return "/?error=" + string(o)
}

// CompleteCallback exchanges an authorization code for a token, stores it
// and verifies it. A token that fails its first identity check is kept.
func (s *Session) CompleteCallback(ctx context.Context, code string) (Outcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return OutcomeNoCode, nil
	}
	s.mu.Lock()
	s.state = Authenticating
	s.initialized = true
	s.mu.Unlock()

	token, err := s.backend.ExchangeCode(ctx, code, s.oauth.RedirectURI)
	if err != nil {
		s.logger.Printf("[Session] callback failed err=%v", err)
		s.setUser(nil)
		return OutcomeServerFail, err
	}
	if token == "" {
		s.setUser(nil)
		return OutcomeLoginFailed, nil
	}
	if err := s.store.Save(ctx, token); err != nil {
		s.setUser(nil)
		return OutcomeServerFail, fmt.Errorf("persist token: %w", err)
	}
	s.verify(ctx, true)
	return OutcomeSuccess, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it. ok is
// false for opaque tokens or tokens without exp. It is informational only.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}
