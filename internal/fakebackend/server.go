// Package fakebackend is an in-memory implementation of the Clickcheck PHP
// API. It backs the end-to-end tests and the devserver command. Unlike the
// client packages it is authoritative: it derives request status from the
// per-link verdicts.
package fakebackend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

type Server struct {
	// FrontendURL prefixes invite links.
	FrontendURL string
	// BareArrays makes the request listing answer with a plain array, like
	// older deployments did.
	BareArrays bool
	Now        func() time.Time

	secret []byte
	router *mux.Router

	mu       sync.Mutex
	nextID   int
	users    []*models.User
	packages []*models.Package
	requests []*models.ValidationRequest
	goals    []*models.Goal
	invites  []*models.Invite
	codes    map[string]string
	uploads  map[string][]byte
}

func New() *Server {
	s := &Server{
		FrontendURL: "http://localhost:5173",
		Now:         time.Now,
		secret:      []byte("fakebackend-secret"),
		nextID:      1,
		codes:       map[string]string{},
		uploads:     map[string][]byte{},
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/auth.php", s.me).Methods(http.MethodGet).Queries("action", "me")
	r.HandleFunc("/auth.php", s.login).Methods(http.MethodGet).Queries("action", "login")
	r.HandleFunc("/auth.php", s.googleCallback).Methods(http.MethodPost).Queries("action", "google-callback-post")

	r.HandleFunc("/users.php", s.listOrGetUsers).Methods(http.MethodGet)
	r.HandleFunc("/users.php", s.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users.php", s.updateUser).Methods(http.MethodPut)
	r.HandleFunc("/users.php", s.deleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/validators.php", s.listValidators).Methods(http.MethodGet)

	r.HandleFunc("/packages.php", s.listOrGetPackages).Methods(http.MethodGet)
	r.HandleFunc("/packages.php", s.createPackage).Methods(http.MethodPost)
	r.HandleFunc("/packages.php", s.updatePackage).Methods(http.MethodPut)
	r.HandleFunc("/packages.php", s.deletePackage).Methods(http.MethodDelete)

	r.HandleFunc("/requests.php", s.stats).Methods(http.MethodGet).Queries("action", "stats")
	r.HandleFunc("/requests.php", s.listOrGetRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests.php", s.createRequest).Methods(http.MethodPost)
	r.HandleFunc("/requests.php", s.bulkUpdateDate).Methods(http.MethodPut).Queries("action", "bulk-update-date")
	r.HandleFunc("/requests.php", s.transition).Methods(http.MethodPut).Queries("action", "{action}")
	r.HandleFunc("/requests.php", s.deleteRequest).Methods(http.MethodDelete)

	r.HandleFunc("/goals.php", s.goalsProgress).Methods(http.MethodGet).Queries("action", "progress")
	r.HandleFunc("/goals.php", s.listGoals).Methods(http.MethodGet)
	r.HandleFunc("/goals.php", s.createGoal).Methods(http.MethodPost)
	r.HandleFunc("/goals.php", s.updateGoal).Methods(http.MethodPut)
	r.HandleFunc("/goals.php", s.deleteGoal).Methods(http.MethodDelete)

	r.HandleFunc("/invites.php", s.verifyInvite).Methods(http.MethodPost).Queries("action", "verify")
	r.HandleFunc("/invites.php", s.listInvites).Methods(http.MethodGet)
	r.HandleFunc("/invites.php", s.createInvite).Methods(http.MethodPost)
	r.HandleFunc("/invites.php", s.deleteInvite).Methods(http.MethodDelete)

	r.HandleFunc("/upload.php", s.upload).Methods(http.MethodPost)
	r.PathPrefix("/uploads/").HandlerFunc(s.serveUpload).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeOK(w http.ResponseWriter) { writeJSON(w, http.StatusOK, map[string]bool{"success": true}) }

// decodeBody reads a JSON body, unwrapping the {"_b64": ...} envelope.
func decodeBody(r *http.Request, dst any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return err
	}
	var env map[string]json.RawMessage
	if json.Unmarshal(b, &env) == nil && len(env) == 1 {
		if raw, ok := env["_b64"]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			if b, err = base64.StdEncoding.DecodeString(s); err != nil {
				return err
			}
		}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func (s *Server) newID() models.ID {
	id := s.nextID
	s.nextID++
	return models.ID(strconv.Itoa(id))
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// TokenFor issues an HS256 token for email, valid for a day.
func (s *Server) TokenFor(email string) string {
	claims := jwt.MapClaims{
		"email": email,
		"iat":   s.now().Unix(),
		"exp":   s.now().Add(24 * time.Hour).Unix(),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tok
}

// RegisterCode makes an OAuth authorization code sign in as email.
func (s *Server) RegisterCode(code, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = email
}

// caller resolves the bearer token. Callers must hold s.mu.
func (s *Server) caller(r *http.Request) *models.User {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return nil
	}
	tok, err := jwt.Parse(strings.TrimPrefix(h, "Bearer "), func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil
	}
	claims, _ := tok.Claims.(jwt.MapClaims)
	email, _ := claims["email"].(string)
	return s.userByEmail(email)
}

// authed locks s.mu and resolves the caller, answering 401 when missing.
// On success the caller must unlock.
func (s *Server) authed(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	s.mu.Lock()
	u := s.caller(r)
	if u == nil {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Não autenticado")
		return nil, false
	}
	return u, true
}

func isAdmin(u *models.User) bool { return u.AdminLevel == models.LevelAdminPrincipal }

func can(u *models.User, key string) bool {
	return isAdmin(u) || u.Permissions[key]
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authed(w, r)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.FrontendURL+"/?login=fake", http.StatusFound)
}

func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
	}
	if err := decodeBody(r, &in); err != nil || in.Code == "" {
		writeError(w, http.StatusBadRequest, "Código ausente")
		return
	}
	s.mu.Lock()
	email, found := s.codes[in.Code]
	delete(s.codes, in.Code)
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": s.TokenFor(email)})
}

func paginate[T any](items []T, page, limit int) ([]T, models.PageMeta) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	total := len(items)
	pages := (total + limit - 1) / limit
	if pages == 0 {
		pages = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], models.PageMeta{Page: models.Count(page), Pages: models.Count(pages), Total: models.Count(total)}
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func sortByCreatedDesc(rs []models.ValidationRequest) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt.Time) })
}
