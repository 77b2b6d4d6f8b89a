package fakebackend

import (
	"net/http"
	"strings"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// AddRequest seeds a request as stored by the backend. Missing ids, dates
// and per-link entries are filled in.
func (s *Server) AddRequest(r models.ValidationRequest) models.ValidationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = models.Timestamp{Time: s.now()}
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	if r.Priority == "" {
		r.Priority = models.PriorityNormal
	}
	if len(r.ValidationPerLink) == 0 {
		r.ValidationPerLink = pendingLinks(r.ContentURLs)
	}
	if p := s.packageByID(r.PackageID); p != nil && r.PackageName == "" {
		r.PackageName = p.Name
	}
	stored := r
	s.requests = append(s.requests, &stored)
	return stored
}

// Request returns a copy of the stored record.
func (s *Server) Request(id models.ID) (models.ValidationRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.requestByID(id); r != nil {
		return *r, true
	}
	return models.ValidationRequest{}, false
}

func (s *Server) requestByID(id models.ID) *models.ValidationRequest {
	for _, r := range s.requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func pendingLinks(urls []string) []models.LinkValidation {
	out := make([]models.LinkValidation, len(urls))
	for i, u := range urls {
		out[i] = models.LinkValidation{URL: u, Status: models.LinkPending}
	}
	return out
}

// deriveStatus is the single place where a request status follows from its
// per-link verdicts.
func deriveStatus(links []models.LinkValidation) models.Status {
	if len(links) == 0 {
		return models.StatusPending
	}
	var approved, rejected int
	for _, l := range links {
		switch l.Status {
		case models.LinkApproved:
			approved++
		case models.LinkRejected:
			rejected++
		}
	}
	switch {
	case approved == len(links):
		return models.StatusApproved
	case rejected == len(links):
		return models.StatusRejected
	case approved+rejected < len(links):
		if approved+rejected == 0 {
			return models.StatusPending
		}
		return models.StatusInReview
	}
	return models.StatusPartialApproved
}

func withCounters(r models.ValidationRequest) models.ValidationRequest {
	approved := 0
	for _, l := range r.ValidationPerLink {
		if l.Status == models.LinkApproved {
			approved++
		}
	}
	r.ApprovedLinks = models.Count(approved)
	r.TotalLinks = models.Count(len(r.ContentURLs))
	return r
}

func visibleTo(u *models.User, r *models.ValidationRequest) bool {
	return can(u, "view_all_validations") || u.Is(r.RequestedBy) || u.Is(r.AssignedTo)
}

func matchesTab(u *models.User, tab string, r *models.ValidationRequest) bool {
	switch tab {
	case "recebidas":
		return u.Is(r.AssignedTo) && r.Status.Open()
	case "minhas":
		return u.Is(r.RequestedBy)
	case "parcial":
		return u.Is(r.RequestedBy) && r.Status == models.StatusPartialApproved
	case "finalizadas":
		return r.Status.Final()
	}
	return true
}

func matchesSearch(r *models.ValidationRequest, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range []string{r.Title, r.Description, r.PackageName, r.RequestedBy, r.AssignedTo} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func inRange(t time.Time, start, end string) bool {
	day := t.Format("2006-01-02")
	if start != "" && day < start {
		return false
	}
	if end != "" && day > end {
		return false
	}
	return true
}

func (s *Server) listOrGetRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		rec := s.requestByID(models.ID(id))
		if rec == nil || !visibleTo(u, rec) {
			writeError(w, http.StatusNotFound, "Validação não encontrada")
			return
		}
		writeJSON(w, http.StatusOK, withCounters(*rec))
		return
	}

	var items []models.ValidationRequest
	for _, rec := range s.requests {
		if !visibleTo(u, rec) || !matchesTab(u, q.Get("tab"), rec) || !matchesSearch(rec, q.Get("search")) {
			continue
		}
		if v := q.Get("requested_by"); v != "" && !strings.EqualFold(v, rec.RequestedBy) {
			continue
		}
		if v := q.Get("assigned_to"); v != "" && !strings.EqualFold(v, rec.AssignedTo) {
			continue
		}
		if v := q.Get("package_id"); v != "" && v != rec.PackageID.String() {
			continue
		}
		if !inRange(rec.CreatedAt.Time, q.Get("start_date"), q.Get("end_date")) {
			continue
		}
		items = append(items, withCounters(*rec))
	}
	sortByCreatedDesc(items)
	if s.BareArrays {
		if items == nil {
			items = []models.ValidationRequest{}
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	page, meta := paginate(items, queryInt(r, "page"), queryInt(r, "limit"))
	if page == nil {
		page = []models.ValidationRequest{}
	}
	writeJSON(w, http.StatusOK, models.RequestPage{Items: page, Meta: meta})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	q := r.URL.Query()
	var st models.Stats
	for _, rec := range s.requests {
		if !visibleTo(u, rec) || !inRange(rec.CreatedAt.Time, q.Get("start_date"), q.Get("end_date")) {
			continue
		}
		st.Total++
		switch {
		case rec.Status.Open():
			st.Pending++
		case rec.Status == models.StatusApproved || rec.Status == models.StatusPartialApproved:
			st.Approved++
		case rec.Status == models.StatusRejected:
			st.Rejected++
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title             string          `json:"title"`
		Description       string          `json:"description"`
		DescriptionImages []string        `json:"description_images"`
		PackageID         models.ID       `json:"package_id"`
		AssignedTo        string          `json:"assigned_to"`
		Priority          models.Priority `json:"priority"`
		ContentURLs       []string        `json:"content_urls"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "create_validation") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	var urls []string
	for _, c := range in.ContentURLs {
		if c = strings.TrimSpace(c); c != "" {
			urls = append(urls, c)
		}
	}
	if strings.TrimSpace(in.Title) == "" || in.PackageID.IsZero() || in.AssignedTo == "" || len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "Campos obrigatórios ausentes")
		return
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	now := s.now()
	rec := &models.ValidationRequest{
		ID:                s.newID(),
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		DescriptionImages: in.DescriptionImages,
		PackageID:         in.PackageID,
		Priority:          in.Priority,
		Status:            models.StatusPending,
		RequestedBy:       u.Email,
		AssignedTo:        in.AssignedTo,
		ContentURLs:       urls,
		ValidationPerLink: pendingLinks(urls),
		CreatedAt:         models.Timestamp{Time: now},
		History:           []models.HistoryEntry{{Action: "create", Timestamp: models.Timestamp{Time: now}, User: u.Email}},
	}
	if p := s.packageByID(in.PackageID); p != nil {
		rec.PackageName = p.Name
	}
	s.requests = append(s.requests, rec)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": rec.ID})
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ValidationPerLink []models.LinkValidation `json:"validation_per_link"`
		FinalObservations string                  `json:"final_observations"`
		ContentURLs       []string                `json:"content_urls"`
		CorrectionNotes   string                  `json:"correction_notes"`
		Reason            string                  `json:"reason"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	rec := s.requestByID(models.ID(r.URL.Query().Get("id")))
	if rec == nil {
		writeError(w, http.StatusNotFound, "Validação não encontrada")
		return
	}
	now := models.Timestamp{Time: s.now()}

	switch r.URL.Query().Get("action") {
	case "validate":
		if !u.Is(rec.AssignedTo) || !rec.Status.Open() {
			writeError(w, http.StatusForbidden, "Validação não atribuída a você")
			return
		}
		if len(in.ValidationPerLink) != len(rec.ContentURLs) {
			writeError(w, http.StatusBadRequest, "Quantidade de links divergente")
			return
		}
		for _, l := range in.ValidationPerLink {
			if !l.Status.Decided() {
				writeError(w, http.StatusBadRequest, "Todos os links devem ser avaliados")
				return
			}
		}
		rec.ValidationPerLink = in.ValidationPerLink
		rec.FinalObservations = in.FinalObservations
		rec.Status = deriveStatus(rec.ValidationPerLink)
		rec.ValidatedBy = u.Email
		rec.ValidatedAt = now
		rec.History = append(rec.History, models.HistoryEntry{Action: "validate", Timestamp: now, User: u.Email, Details: string(rec.Status)})

	case "correct":
		if !u.Is(rec.RequestedBy) {
			writeError(w, http.StatusForbidden, "Apenas o solicitante pode corrigir")
			return
		}
		if rec.Status != models.StatusRejected && rec.Status != models.StatusPartialApproved {
			writeError(w, http.StatusBadRequest, "Validação não pode ser corrigida")
			return
		}
		if len(in.ContentURLs) != len(rec.ContentURLs) {
			writeError(w, http.StatusBadRequest, "Quantidade de links divergente")
			return
		}
		links := make([]models.LinkValidation, len(in.ContentURLs))
		for i, url := range in.ContentURLs {
			links[i] = models.LinkValidation{URL: url, Status: models.LinkPending}
			if i < len(rec.ValidationPerLink) && rec.ValidationPerLink[i].Status == models.LinkApproved {
				links[i] = rec.ValidationPerLink[i]
			}
		}
		rec.ContentURLs = in.ContentURLs
		rec.ValidationPerLink = links
		rec.CorrectionNotes = in.CorrectionNotes
		rec.Status = models.StatusPending
		rec.ReturnCount++
		rec.History = append(rec.History, models.HistoryEntry{Action: "correct", Timestamp: now, User: u.Email, Details: in.CorrectionNotes})

	case "revert":
		if !isAdmin(u) {
			writeError(w, http.StatusForbidden, "Apenas administradores podem reverter")
			return
		}
		if rec.Status != models.StatusApproved {
			writeError(w, http.StatusBadRequest, "Apenas validações aprovadas podem ser revertidas")
			return
		}
		if strings.TrimSpace(in.Reason) == "" {
			writeError(w, http.StatusBadRequest, "Motivo obrigatório")
			return
		}
		rec.ValidationPerLink = pendingLinks(rec.ContentURLs)
		rec.Status = models.StatusPending
		rec.ValidatedAt = models.Timestamp{}
		rec.History = append(rec.History, models.HistoryEntry{Action: "revert", Timestamp: now, User: u.Email, Details: in.Reason})

	default:
		writeError(w, http.StatusBadRequest, "Ação desconhecida")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "request": withCounters(*rec)})
}

func (s *Server) deleteRequest(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "delete_validation") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for i, rec := range s.requests {
		if rec.ID == id {
			s.requests = append(s.requests[:i], s.requests[i+1:]...)
			writeOK(w)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Validação não encontrada")
}

func (s *Server) bulkUpdateDate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs     []models.ID `json:"ids"`
		NewDate string      `json:"new_date"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	day, err := time.Parse("2006-01-02", in.NewDate)
	if err != nil || len(in.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "bulk_edit_dates") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	updated := 0
	for _, id := range in.IDs {
		rec := s.requestByID(id)
		if rec == nil {
			continue
		}
		c := rec.CreatedAt.Time
		rec.CreatedAt = models.Timestamp{Time: time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, c.Location())}
		rec.History = append(rec.History, models.HistoryEntry{Action: "bulk_date", Timestamp: models.Timestamp{Time: s.now()}, User: u.Email, Details: in.NewDate})
		updated++
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
