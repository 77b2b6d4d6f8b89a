package handlers

import (
	"net/http"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

type actionsView struct {
	View     bool `json:"view"`
	Validate bool `json:"validate"`
	Correct  bool `json:"correct"`
	Revert   bool `json:"revert"`
	Delete   bool `json:"delete"`
}

type rowView struct {
	models.ValidationRequest
	Actions       actionsView `json:"actions"`
	ApprovedCount int         `json:"approved_count"`
	LinkCount     int         `json:"link_count"`
	Overdue       bool        `json:"overdue"`
}

type centralView struct {
	Tab    string          `json:"tab"`
	Search string          `json:"search"`
	Page   int             `json:"page"`
	Meta   models.PageMeta `json:"meta"`
	Items  []rowView       `json:"items"`
}

func (h *Handler) row(r models.ValidationRequest) rowView {
	a := validation.ActionsFor(h.sess.Capabilities(), r)
	approved, total := r.LinkCounts()
	return rowView{
		ValidationRequest: r,
		Actions:           actionsView{View: a.View, Validate: a.Validate, Correct: a.Correct, Revert: a.Revert, Delete: a.Delete},
		ApprovedCount:     approved,
		LinkCount:         total,
		Overdue:           r.Overdue(h.now()),
	}
}

// Central is the request list: ?tab=&search=&page= select the rows.
func (h *Handler) Central(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := h.board.Filter()
	if raw := strings.TrimSpace(q.Get("tab")); raw != "" {
		tab, err := validation.ParseTab(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Tab = tab
	}
	if q.Has("search") {
		f.Search = q.Get("search")
	}
	if f != h.board.Filter() {
		if err := h.board.SetFilter(f); err != nil {
			writeFailure(w, err)
			return
		}
	}
	h.board.SetPage(queryInt(r, "page", 1))
	if err := h.board.Refresh(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	v := h.board.View()
	out := centralView{Tab: string(v.Filter.Tab), Search: v.Filter.Search, Page: v.Page, Meta: v.Meta, Items: []rowView{}}
	for _, it := range v.Items {
		out.Items = append(out.Items, h.row(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.ValidationRequest, bool) {
	rec, err := h.requests.Get(r.Context(), models.ID(pathVar(r, "id")))
	if err != nil {
		writeFailure(w, err)
		return models.ValidationRequest{}, false
	}
	return *rec, true
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.row(rec))
}

type draftBody struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	DescriptionImages []string        `json:"description_images"`
	PackageID         models.ID       `json:"package_id"`
	AssignedTo        string          `json:"assigned_to"`
	Priority          models.Priority `json:"priority"`
	ContentURLs       []string        `json:"content_urls"`
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.requests.Create(r.Context(), validation.Draft(body))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": res.ID})
}

type verdictBody struct {
	Links []struct {
		Status       models.LinkStatus `json:"status"`
		Observations string            `json:"observations"`
	} `json:"links"`
	FinalObservations *string `json:"final_observations"`
}

// ValidateRequest records one verdict per link, by position, and submits
// the review.
func (h *Handler) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	var body verdictBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	rv := validation.NewReview(rec)
	for i, l := range body.Links {
		if err := rv.Set(i, l.Status, l.Observations); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if body.FinalObservations != nil {
		rv.FinalObservations = *body.FinalObservations
	}
	res, err := h.requests.Validate(r.Context(), rec, rv)
	h.finish(w, rec.ID, res, err)
}

type correctionBody struct {
	// URLs fill the rejected positions in order.
	URLs []string `json:"urls"`
	// Replacements address rejected positions by index.
	Replacements map[int]string `json:"replacements"`
	Notes        string         `json:"notes"`
}

func (h *Handler) CorrectRequest(w http.ResponseWriter, r *http.Request) {
	var body correctionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	c, err := validation.NewCorrection(rec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := c.SetAll(body.URLs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, u := range body.Replacements {
		if err := c.Set(i, u); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	c.Notes = body.Notes
	res, err := h.requests.Correct(r.Context(), rec, c)
	h.finish(w, rec.ID, res, err)
}

func (h *Handler) RevertRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	res, err := h.requests.Revert(r.Context(), rec, body.Reason)
	h.finish(w, rec.ID, res, err)
}

// finish reflects a confirmed transition on the board and tells
// subscribers. The status shown is always the one the backend returned.
func (h *Handler) finish(w http.ResponseWriter, id models.ID, res api.Result, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.board.Apply(id, res.Request)
	out := map[string]any{"success": true, "id": id}
	if res.Request != nil {
		out["request"] = h.row(*res.Request)
		h.emitTransition(id, res.Request.Status)
	} else {
		h.emitTransition(id, "")
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteRequest needs ?confirm=true; the browser asks before calling.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"
	err := h.requests.Delete(r.Context(), rec, func(models.ValidationRequest) bool { return confirmed })
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.board.Remove(rec.ID)
	h.emitTransition(rec.ID, "deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) BulkDate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs     []models.ID `json:"ids"`
		NewDate string      `json:"new_date"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.requests.BulkUpdateDate(r.Context(), body.IDs, strings.TrimSpace(body.NewDate))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
