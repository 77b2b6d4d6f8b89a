package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/google/uuid"
)

// AddUser seeds a user. The returned copy carries the assigned id.
func (s *Server) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = s.newID()
	}
	if u.AdminLevel == "" {
		u.AdminLevel = models.LevelUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = models.Timestamp{Time: s.now()}
	}
	u.Permissions = u.Permissions.Clone()
	stored := u
	s.users = append(s.users, &stored)
	return stored
}

func (s *Server) User(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.userByEmail(email); u != nil {
		return *u, true
	}
	return models.User{}, false
}

func (s *Server) userByEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Is(email) {
			return u
		}
	}
	return nil
}

func (s *Server) userByID(id models.ID) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Server) listOrGetUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	defer s.mu.Unlock()
	// Listing is open to any signed-in user: the ranking and report screens
	// resolve names from it. Mutations need manage_users.
	if id := r.URL.Query().Get("id"); id != "" {
		target := s.userByID(models.ID(id))
		if target == nil {
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		writeJSON(w, http.StatusOK, target)
		return
	}
	out := make([]models.User, 0, len(s.users))
	for _, x := range s.users {
		out = append(out, *x)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listValidators(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	defer s.mu.Unlock()
	out := []models.User{}
	for _, x := range s.users {
		if isAdmin(x) || x.Permissions["validate"] {
			out = append(out, *x)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string             `json:"email"`
		FullName    string             `json:"full_name"`
		Profile     models.Profile     `json:"profile"`
		Permissions models.Permissions `json:"permissions"`
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
	if !can(u, "manage_users") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email é obrigatório")
		return
	}
	if s.userByEmail(in.Email) != nil {
		writeError(w, http.StatusConflict, "Email já cadastrado")
		return
	}
	nu := &models.User{
		ID:          s.newID(),
		Email:       strings.TrimSpace(in.Email),
		FullName:    in.FullName,
		AdminLevel:  models.LevelUser,
		Profile:     in.Profile,
		Permissions: in.Permissions.Clone(),
		CreatedAt:   models.Timestamp{Time: s.now()},
	}
	s.users = append(s.users, nu)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": nu.ID})
}

// updateUser merges the keys present in the body. manager_id: null clears
// the manager.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	target := s.userByID(models.ID(r.URL.Query().Get("id")))
	if target == nil {
		writeError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	self := target == u
	if !self && !can(u, "manage_users") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	next := *target
	for k, raw := range patch {
		var err error
		switch k {
		case "nickname":
			err = json.Unmarshal(raw, &next.Nickname)
		case "full_name":
			err = json.Unmarshal(raw, &next.FullName)
		case "phone":
			err = json.Unmarshal(raw, &next.Phone)
		case "department":
			err = json.Unmarshal(raw, &next.Department)
		case "profile_picture":
			err = json.Unmarshal(raw, &next.ProfilePicture)
		case "profile", "permissions", "manager_id", "admin_level":
			if !can(u, "manage_users") {
				writeError(w, http.StatusForbidden, "Sem permissão")
				return
			}
			switch k {
			case "profile":
				err = json.Unmarshal(raw, &next.Profile)
			case "permissions":
				next.Permissions = nil
				err = json.Unmarshal(raw, &next.Permissions)
			case "admin_level":
				err = json.Unmarshal(raw, &next.AdminLevel)
			default:
				next.ManagerID = nil
				err = json.Unmarshal(raw, &next.ManagerID)
				if next.ManagerID != nil && next.ManagerID.IsZero() {
					next.ManagerID = nil
				}
			}
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Campo inválido: %s", k))
			return
		}
	}
	*target = next
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": next})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "manage_users") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for i, x := range s.users {
		if x.ID != id {
			continue
		}
		if x == u || isAdmin(x) {
			writeError(w, http.StatusForbidden, "Não é possível excluir este usuário")
			return
		}
		s.users = append(s.users[:i], s.users[i+1:]...)
		writeOK(w)
		return
	}
	writeError(w, http.StatusNotFound, "Usuário não encontrado")
}

func (s *Server) AddPackage(p models.Package) models.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = s.newID()
	}
	stored := p
	s.packages = append(s.packages, &stored)
	return stored
}

func (s *Server) packageByID(id models.ID) *models.Package {
	for _, p := range s.packages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) listOrGetPackages(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	defer s.mu.Unlock()
	if id := r.URL.Query().Get("id"); id != "" {
		p := s.packageByID(models.ID(id))
		if p == nil {
			writeError(w, http.StatusNotFound, "Pacote não encontrado")
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	activeOnly := r.URL.Query().Get("active") != ""
	out := []models.Package{}
	for _, p := range s.packages {
		if activeOnly && !bool(p.Active) {
			continue
		}
		out = append(out, *p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPackage(w http.ResponseWriter, r *http.Request) {
	var in models.Package
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "manage_packages") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "Informe o nome do pacote")
		return
	}
	in.ID = s.newID()
	s.packages = append(s.packages, &in)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": in.ID})
}

func (s *Server) updatePackage(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "manage_packages") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	p := s.packageByID(models.ID(r.URL.Query().Get("id")))
	if p == nil {
		writeError(w, http.StatusNotFound, "Pacote não encontrado")
		return
	}
	// Re-decode the merged object so partial patches keep other fields.
	cur, _ := json.Marshal(p)
	var merged map[string]json.RawMessage
	_ = json.Unmarshal(cur, &merged)
	for k, v := range patch {
		merged[k] = v
	}
	b, _ := json.Marshal(merged)
	next := models.Package{}
	if err := json.Unmarshal(b, &next); err != nil {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	next.ID = p.ID
	*p = next
	writeOK(w)
}

func (s *Server) deletePackage(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !can(u, "manage_packages") {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for i, p := range s.packages {
		if p.ID == id {
			s.packages = append(s.packages[:i], s.packages[i+1:]...)
			writeOK(w)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Pacote não encontrado")
}

func (s *Server) AddGoal(g models.Goal) models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID.IsZero() {
		g.ID = s.newID()
	}
	stored := g
	s.goals = append(s.goals, &stored)
	return stored
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	defer s.mu.Unlock()
	month := r.URL.Query().Get("month")
	out := []models.Goal{}
	for _, g := range s.goals {
		if month != "" && g.Month != month {
			continue
		}
		out = append(out, s.decorateGoal(*g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) decorateGoal(g models.Goal) models.Goal {
	if u := s.userByID(g.UserID); u != nil {
		g.UserName = u.DisplayName()
	}
	if p := s.packageByID(g.PackageID); p != nil {
		g.PackageName = p.Name
	}
	return g
}

// achieved counts approved links validated in month on requests made by
// email for the package.
func (s *Server) achieved(email string, pkg models.ID, month string) int {
	n := 0
	for _, rec := range s.requests {
		if !strings.EqualFold(rec.RequestedBy, email) || rec.PackageID != pkg {
			continue
		}
		if rec.ValidatedAt.IsZero() || rec.ValidatedAt.Format("2006-01") != month {
			continue
		}
		for _, l := range rec.ValidationPerLink {
			if l.Status == models.LinkApproved {
				n++
			}
		}
	}
	return n
}

func (s *Server) goalsProgress(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	month := r.URL.Query().Get("month")
	if month == "" {
		month = s.now().Format("2006-01")
	}
	out := []models.GoalProgress{}
	for _, g := range s.goals {
		if g.Month != month {
			continue
		}
		owner := s.userByID(g.UserID)
		if owner == nil {
			continue
		}
		if !isAdmin(u) && owner != u && (owner.ManagerID == nil || *owner.ManagerID != u.ID) {
			continue
		}
		d := s.decorateGoal(*g)
		got := s.achieved(owner.Email, g.PackageID, month)
		team := 0
		for _, m := range s.users {
			if m.ManagerID != nil && *m.ManagerID == owner.ID {
				team++
				got += s.achieved(m.Email, g.PackageID, month)
			}
		}
		pct := 0.0
		if g.TargetCount > 0 {
			pct = math.Round(float64(got)/float64(g.TargetCount)*1000) / 10
		}
		out = append(out, models.GoalProgress{
			UserID:      g.UserID,
			UserName:    d.UserName,
			PackageID:   g.PackageID,
			PackageName: d.PackageName,
			Month:       month,
			TargetCount: g.TargetCount,
			Achieved:    models.Count(got),
			Percentage:  pct,
			IsManager:   models.Flag(team > 0),
			TeamSize:    models.Count(team),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var in models.Goal
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	if in.UserID.IsZero() || in.PackageID.IsZero() || in.TargetCount <= 0 || in.Month == "" {
		writeError(w, http.StatusBadRequest, "Dados da meta incompletos")
		return
	}
	in.ID = s.newID()
	s.goals = append(s.goals, &in)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": in.ID})
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	var in models.Goal
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for _, g := range s.goals {
		if g.ID == id {
			in.ID = id
			*g = in
			writeOK(w)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Meta não encontrada")
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			writeOK(w)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Meta não encontrada")
}

func (s *Server) inviteByToken(token string) *models.Invite {
	for _, inv := range s.invites {
		if inv.Token == token {
			return inv
		}
	}
	return nil
}

func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	out := []models.Invite{}
	for _, inv := range s.invites {
		out = append(out, *inv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email      string            `json:"email"`
		AdminLevel models.AdminLevel `json:"admin_level"`
		ExpiresIn  int               `json:"expires_in"`
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
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email é obrigatório")
		return
	}
	if in.ExpiresIn <= 0 {
		in.ExpiresIn = 7
	}
	if in.AdminLevel == "" {
		in.AdminLevel = models.LevelUser
	}
	token := uuid.NewString()
	inv := &models.Invite{
		ID:         s.newID(),
		Email:      strings.TrimSpace(in.Email),
		AdminLevel: in.AdminLevel,
		Token:      token,
		Status:     models.InvitePending,
		CreatedAt:  models.Timestamp{Time: s.now()},
		ExpiresAt:  models.Timestamp{Time: s.now().Add(time.Duration(in.ExpiresIn) * 24 * time.Hour)},
		InviteURL:  strings.TrimRight(s.FrontendURL, "/") + "/invite?token=" + token,
	}
	s.invites = append(s.invites, inv)
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) deleteInvite(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	if !isAdmin(u) {
		writeError(w, http.StatusForbidden, "Sem permissão")
		return
	}
	id := models.ID(r.URL.Query().Get("id"))
	for i, inv := range s.invites {
		if inv.ID == id {
			s.invites = append(s.invites[:i], s.invites[i+1:]...)
			writeOK(w)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Convite não encontrado")
}

// UseInvite marks an invite as consumed, as the backend does when the
// invited account signs in for the first time.
func (s *Server) UseInvite(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv := s.inviteByToken(token); inv != nil {
		inv.Status = models.InviteUsed
		return true
	}
	return false
}

func (s *Server) verifyInvite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.inviteByToken(strings.TrimSpace(in.Token))
	switch {
	case inv == nil:
		writeError(w, http.StatusNotFound, "Convite não encontrado")
	case inv.Status == models.InviteUsed:
		writeJSON(w, http.StatusOK, models.InviteVerification{Valid: false, Error: "Convite já utilizado"})
	case s.now().After(inv.ExpiresAt.Time):
		writeJSON(w, http.StatusOK, models.InviteVerification{Valid: false, Error: "Convite expirado"})
	default:
		writeJSON(w, http.StatusOK, models.InviteVerification{Valid: true, Email: inv.Email, AdminLevel: inv.AdminLevel, ExpiresAt: inv.ExpiresAt})
	}
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authed(w, r); !ok {
		return
	}
	s.mu.Unlock()
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Nenhum arquivo enviado")
		return
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Erro no upload")
		return
	}
	name := uuid.NewString() + "-" + path.Base(hdr.Filename)
	s.mu.Lock()
	s.uploads[name] = b
	s.mu.Unlock()
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, name)})
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/uploads/")
	s.mu.Lock()
	b, found := s.uploads[name]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(b))
	_, _ = w.Write(b)
}
