package handlers

import (
	"net/http"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/goals"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/reports"
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := h.reports.Dashboard(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	recent := make([]rowView, 0, len(d.Recent))
	for _, rec := range d.Recent {
		recent = append(recent, h.row(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"first_name": d.FirstName,
		"stats":      d.Stats,
		"recent":     recent,
	})
}

func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	active, inactive, err := h.reports.Ranking(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if active == nil {
		active = []reports.Entry{}
	}
	if inactive == nil {
		inactive = []reports.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "inactive": inactive})
}

// Report reads start_date, end_date, user and status; missing dates mean
// the current month.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reports.DefaultFilter(h.now())
	if v := strings.TrimSpace(q.Get("start_date")); v != "" {
		f.StartDate = v
	}
	if v := strings.TrimSpace(q.Get("end_date")); v != "" {
		f.EndDate = v
	}
	f.User = strings.TrimSpace(q.Get("user"))
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st := models.Status(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "status inválido: "+v)
			return
		}
		f.Status = st
	}
	rep, err := h.reports.Report(r.Context(), f)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) GoalsProgress(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = goals.CurrentMonth(h.now())
	}
	if _, err := goals.ParseMonth(month); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.goals.Progress(r.Context(), month)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []goals.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "rows": rows})
}
