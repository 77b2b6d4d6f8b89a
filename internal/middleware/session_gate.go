// Package middleware holds HTTP middleware for the serve shell.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
)

// CapabilitySource yields the signed-in user's capabilities.
type CapabilitySource interface {
	Capabilities() permissions.Capabilities
}

// DefaultPublic are the path prefixes that never need a session.
var DefaultPublic = []string{
	"/health",
	"/metrics",
	"/google/",
	"/api/session",
	"/api/invites/verify",
	"/api/events",
}

// SessionGate answers 401 for /api routes while nobody is signed in, so
// handlers behind it can assume a user. Every other path passes through.
type SessionGate struct {
	Caps   CapabilitySource
	Public []string
	// LoginPath is advertised in the 401 body.
	LoginPath string
}

func NewSessionGate(caps CapabilitySource) *SessionGate {
	return &SessionGate{Caps: caps, Public: DefaultPublic, LoginPath: "/api/session/login"}
}

type userKey struct{}

// UserFrom returns the user the gate admitted the request for.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

func (g *SessionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.shouldSkip(r) {
			next.ServeHTTP(w, r)
			return
		}
		var c permissions.Capabilities
		if g.Caps != nil {
			c = g.Caps.Capabilities()
		}
		if !c.Authenticated() {
			g.respondUnauthenticated(w)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, c.User())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *SessionGate) shouldSkip(r *http.Request) bool {
	if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	for _, p := range g.Public {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

func (g *SessionGate) respondUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     "no_session",
		"message":   "Nenhuma sessão ativa",
		"login_url": g.LoginPath,
	})
}
