package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

const InvalidInviteMessage = "Convite inválido"

type NewInvite struct {
	Email      string            `json:"email"`
	AdminLevel models.AdminLevel `json:"admin_level"`
	ExpiresIn  int               `json:"expires_in"`
}

func (c *Client) ListInvites(ctx context.Context) ([]models.Invite, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "invites.php"}, &raw); err != nil {
		return nil, err
	}
	var out []models.Invite
	if err := json.Unmarshal(raw, &out); err != nil {
		// Anything other than a list renders as an empty list.
		return []models.Invite{}, nil
	}
	return out, nil
}

func (c *Client) CreateInvite(ctx context.Context, in NewInvite) (*models.Invite, error) {
	var out models.Invite
	if err := c.do(ctx, call{method: http.MethodPost, endpoint: "invites.php", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInvite(ctx context.Context, id models.ID) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "invites.php", query: idQuery(id)}, nil)
}

// VerifyInvite checks an invite token. It is anonymous and sends a plain
// JSON body. A rejected token is reported in the result, not as an error.
func (c *Client) VerifyInvite(ctx context.Context, token string) (*models.InviteVerification, error) {
	body := struct {
		Token string `json:"token"`
	}{token}
	var out models.InviteVerification
	err := c.do(ctx, call{method: http.MethodPost, endpoint: "invites.php", query: url.Values{"action": {"verify"}}, body: body, anon: true, noWrap: true, fallback: InvalidInviteMessage}, &out)
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return &models.InviteVerification{Valid: false, Error: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	if !out.Valid && out.Error == "" {
		out.Error = InvalidInviteMessage
	}
	return &out, nil
}
