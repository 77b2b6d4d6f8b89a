package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

func (c *Client) ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	var q url.Values
	if activeOnly {
		q = url.Values{"active": {"true"}}
	}
	var out []models.Package
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "packages.php", query: q}, &out)
	return out, err
}

func (c *Client) GetPackage(ctx context.Context, id models.ID) (*models.Package, error) {
	var out models.Package
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "packages.php", query: idQuery(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePackage(ctx context.Context, p models.Package) error {
	return c.do(ctx, call{method: http.MethodPost, endpoint: "packages.php", body: p}, nil)
}

// UpdatePackage sends a partial update; patch is usually a models.Package
// or a small map such as {"active": false}.
func (c *Client) UpdatePackage(ctx context.Context, id models.ID, patch any) error {
	return c.do(ctx, call{method: http.MethodPut, endpoint: "packages.php", query: idQuery(id), body: patch}, nil)
}

func (c *Client) DeletePackage(ctx context.Context, id models.ID) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "packages.php", query: idQuery(id)}, nil)
}
