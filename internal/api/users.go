package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

type NewUser struct {
	Email       string             `json:"email"`
	FullName    string             `json:"full_name"`
	Profile     models.Profile     `json:"profile"`
	Permissions models.Permissions `json:"permissions"`
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "users.php"}, &out)
	return out, err
}

// ListValidators is the validator listing available to any signed-in user.
func (c *Client) ListValidators(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "validators.php"}, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, id models.ID) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "users.php", query: idQuery(id)}, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (c *Client) CreateUser(ctx context.Context, u NewUser) error {
	return c.do(ctx, call{method: http.MethodPost, endpoint: "users.php", body: u}, nil)
}

// UpdateUser sends a partial update. patch is any JSON object; fields
// absent from it are left untouched by the backend. The updated user is
// returned when the backend echoes it, nil otherwise.
func (c *Client) UpdateUser(ctx context.Context, id models.ID, patch any) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodPut, endpoint: "users.php", query: idQuery(id), body: patch}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	u, err := decodeUser(raw)
	if err != nil || u.Email == "" {
		return nil, nil
	}
	return u, nil
}

func (c *Client) DeleteUser(ctx context.Context, id models.ID) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "users.php", query: idQuery(id)}, nil)
}
