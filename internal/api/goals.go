package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

func monthQuery(month string, kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	if month != "" {
		q.Set("month", month)
	}
	return q
}

func (c *Client) ListGoals(ctx context.Context, month string) ([]models.Goal, error) {
	var out []models.Goal
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "goals.php", query: monthQuery(month)}, &out)
	return out, err
}

func (c *Client) GoalsProgress(ctx context.Context, month string) ([]models.GoalProgress, error) {
	var out []models.GoalProgress
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "goals.php", query: monthQuery(month, "action", "progress")}, &out)
	return out, err
}

func (c *Client) CreateGoal(ctx context.Context, g models.Goal) error {
	return c.do(ctx, call{method: http.MethodPost, endpoint: "goals.php", body: g}, nil)
}

func (c *Client) UpdateGoal(ctx context.Context, id models.ID, g models.Goal) error {
	return c.do(ctx, call{method: http.MethodPut, endpoint: "goals.php", query: idQuery(id), body: g}, nil)
}

func (c *Client) DeleteGoal(ctx context.Context, id models.ID) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "goals.php", query: idQuery(id)}, nil)
}
