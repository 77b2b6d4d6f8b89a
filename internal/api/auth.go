package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "auth.php", query: url.Values{"action": {"me"}}}, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// decodeUser accepts a bare user or one nested under "user".
func decodeUser(raw []byte) (*models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// LegacyLoginURL is the backend-driven login entry point. A non-empty
// invite token lets the backend bind the new account to that invite.
func (c *Client) LegacyLoginURL(invite string) string {
	c.EnsureDefaults()
	q := url.Values{"action": {"login"}}
	if invite = strings.TrimSpace(invite); invite != "" {
		q.Set("invite", invite)
	}
	return c.endpointURL("auth.php", q)
}

// ExchangeCode trades an OAuth authorization code for a session token. It
// is anonymous and always uses the base64 envelope. An empty token with a
// nil error means the backend declined the login.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	c.EnsureDefaults()
	payload := struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
	}{code, redirectURI}
	body, err := encodeBody(payload, true)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpointURL("auth.php", url.Values{"action": {"google-callback-post"}}), strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	cl := call{method: http.MethodPost, endpoint: "auth.php", query: url.Values{"action": {"google-callback-post"}}, anon: true}
	if err := c.send(req, cl, false, &out); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return "", &Error{StatusCode: apiErr.StatusCode, Message: CallbackFailure, RequestID: apiErr.RequestID}
		}
		return "", err
	}
	return strings.TrimSpace(out.Token), nil
}
