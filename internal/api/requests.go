package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// ListParams are the server-side filters of the request listing. Zero
// values are omitted from the query.
type ListParams struct {
	Page        int
	Limit       int
	Tab         string
	Search      string
	RequestedBy string
	AssignedTo  string
	PackageID   models.ID
	StartDate   string
	EndDate     string
}

func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("tab", p.Tab)
	set("search", p.Search)
	set("requested_by", p.RequestedBy)
	set("assigned_to", p.AssignedTo)
	set("package_id", p.PackageID.String())
	set("start_date", p.StartDate)
	set("end_date", p.EndDate)
	return q
}

// ListRequests fetches one page. Older backends answer with a bare array,
// which is reported as a single page.
func (c *Client) ListRequests(ctx context.Context, p ListParams) (models.RequestPage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "requests.php", query: p.Values()}, &raw); err != nil {
		return models.RequestPage{}, err
	}
	return decodePage(raw)
}

func decodePage(raw []byte) (models.RequestPage, error) {
	t := bytes.TrimSpace(raw)
	if len(t) > 0 && t[0] == '[' {
		var items []models.ValidationRequest
		if err := json.Unmarshal(t, &items); err != nil {
			return models.RequestPage{}, err
		}
		return models.RequestPage{
			Items: items,
			Meta:  models.PageMeta{Page: 1, Pages: 1, Total: models.Count(len(items))},
		}, nil
	}
	var page models.RequestPage
	if err := json.Unmarshal(t, &page); err != nil {
		return models.RequestPage{}, err
	}
	if page.Meta.Page == 0 {
		page.Meta.Page = 1
	}
	if page.Meta.Pages == 0 {
		page.Meta.Pages = 1
	}
	return page, nil
}

// ListAllRequests walks every page for p (Page is ignored).
func (c *Client) ListAllRequests(ctx context.Context, p ListParams) ([]models.ValidationRequest, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	var out []models.ValidationRequest
	for page := 1; ; page++ {
		p.Page = page
		res, err := c.ListRequests(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if page >= int(res.Meta.Pages) || len(res.Items) == 0 {
			return out, nil
		}
	}
}

func (c *Client) GetRequest(ctx context.Context, id models.ID) (*models.ValidationRequest, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, endpoint: "requests.php", query: idQuery(id)}, &raw); err != nil {
		return nil, err
	}
	rec, _ := decodeRecord(raw)
	if rec == nil {
		rec = &models.ValidationRequest{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Result is what a mutation returned: the id and, when the backend echoes
// it, the updated record.
type Result struct {
	ID      models.ID
	Request *models.ValidationRequest
}

// decodeRecord looks for a full record at the top level or under
// "request"/"data".
func decodeRecord(raw []byte) (*models.ValidationRequest, models.ID) {
	var probe struct {
		ID      models.ID       `json:"id"`
		Status  string          `json:"status"`
		Request json.RawMessage `json:"request"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, ""
	}
	for _, nested := range []json.RawMessage{probe.Request, probe.Data} {
		if len(nested) > 0 && nested[0] == '{' {
			var r models.ValidationRequest
			if err := json.Unmarshal(nested, &r); err == nil && r.Status != "" {
				return &r, r.ID
			}
		}
	}
	if probe.Status != "" {
		var r models.ValidationRequest
		if err := json.Unmarshal(raw, &r); err == nil {
			return &r, r.ID
		}
	}
	return nil, probe.ID
}

func (c *Client) mutate(ctx context.Context, cl call, id models.ID) (Result, error) {
	var raw json.RawMessage
	if err := c.do(ctx, cl, &raw); err != nil {
		return Result{}, err
	}
	res := Result{ID: id}
	if len(raw) > 0 {
		rec, rid := decodeRecord(raw)
		res.Request = rec
		if res.ID.IsZero() {
			res.ID = rid
		}
	}
	return res, nil
}

type NewRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	DescriptionImages []string        `json:"description_images,omitempty"`
	PackageID         models.ID       `json:"package_id"`
	AssignedTo        string          `json:"assigned_to"`
	Priority          models.Priority `json:"priority"`
	ContentURLs       []string        `json:"content_urls"`
}

func (c *Client) CreateRequest(ctx context.Context, r NewRequest) (Result, error) {
	return c.mutate(ctx, call{method: http.MethodPost, endpoint: "requests.php", body: r}, "")
}

type Verdict struct {
	ValidationPerLink []models.LinkValidation `json:"validation_per_link"`
	FinalObservations string                  `json:"final_observations"`
}

func (c *Client) ValidateRequest(ctx context.Context, id models.ID, v Verdict) (Result, error) {
	return c.mutate(ctx, call{method: http.MethodPut, endpoint: "requests.php", query: idQuery(id, "action", "validate"), body: v}, id)
}

type Correction struct {
	ContentURLs     []string `json:"content_urls"`
	CorrectionNotes string   `json:"correction_notes"`
}

func (c *Client) CorrectRequest(ctx context.Context, id models.ID, corr Correction) (Result, error) {
	return c.mutate(ctx, call{method: http.MethodPut, endpoint: "requests.php", query: idQuery(id, "action", "correct"), body: corr}, id)
}

func (c *Client) RevertRequest(ctx context.Context, id models.ID, reason string) (Result, error) {
	body := struct {
		Reason string `json:"reason"`
	}{reason}
	return c.mutate(ctx, call{method: http.MethodPut, endpoint: "requests.php", query: idQuery(id, "action", "revert"), body: body}, id)
}

func (c *Client) DeleteRequest(ctx context.Context, id models.ID) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "requests.php", query: idQuery(id)}, nil)
}

type BulkDateResult struct {
	Updated models.Count `json:"updated"`
}

func (c *Client) BulkUpdateDate(ctx context.Context, ids []models.ID, newDate string) (BulkDateResult, error) {
	body := struct {
		IDs     []models.ID `json:"ids"`
		NewDate string      `json:"new_date"`
	}{ids, newDate}
	var out BulkDateResult
	err := c.do(ctx, call{method: http.MethodPut, endpoint: "requests.php", query: url.Values{"action": {"bulk-update-date"}}, body: body}, &out)
	return out, err
}

// Stats returns server-side counters, optionally limited to a date range.
func (c *Client) Stats(ctx context.Context, startDate, endDate string) (models.Stats, error) {
	q := url.Values{"action": {"stats"}}
	if startDate != "" {
		q.Set("start_date", startDate)
	}
	if endDate != "" {
		q.Set("end_date", endDate)
	}
	var out models.Stats
	err := c.do(ctx, call{method: http.MethodGet, endpoint: "requests.php", query: q}, &out)
	return out, err
}
