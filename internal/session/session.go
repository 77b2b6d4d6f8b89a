// Package session owns the signed-in user for the lifetime of a process.
// A Session is built once at start-up, initialised explicitly with Init,
// and handed to every component through a context.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

type State int

const (
	Loading State = iota
	Unauthenticated
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Backend is the part of the API the session needs.
type Backend interface {
	Me(ctx context.Context) (*models.User, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	LegacyLoginURL(invite string) string
}

var ErrNoSession = errors.New("nenhuma sessão ativa")

type Options struct {
	OAuth  OAuthConfig
	Logger *log.Logger
}

type Session struct {
	store   tokenstore.Store
	backend Backend
	oauth   OAuthConfig
	logger  *log.Logger

	mu          sync.RWMutex
	state       State
	user        *models.User
	caps        permissions.Capabilities
	initialized bool
}

func New(store tokenstore.Store, backend Backend, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Session{
		store:   store,
		backend: backend,
		oauth:   opts.OAuth,
		logger:  opts.Logger,
		state:   Loading,
	}
}

// Init runs the boot sequence once: adopt a token handed over in the
// landing URL, then verify whichever token is stored. A failed identity
// check discards a stored token but keeps one that just arrived through
// the URL, since the backend may not have committed that session yet.
// Later calls return the current state without another identity check.
func (s *Session) Init(ctx context.Context, urlToken string) (State, error) {
	s.mu.Lock()
	if s.initialized {
		st := s.state
		s.mu.Unlock()
		return st, nil
	}
	s.initialized = true
	s.state = Loading
	s.mu.Unlock()

	fresh := strings.TrimSpace(urlToken) != ""
	if fresh {
		if err := s.store.Save(ctx, strings.TrimSpace(urlToken)); err != nil {
			s.setUser(nil)
			return Unauthenticated, fmt.Errorf("persist landing token: %w", err)
		}
	}
	token, err := s.store.Load(ctx)
	if err != nil {
		s.setUser(nil)
		return Unauthenticated, fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		s.setUser(nil)
		return Unauthenticated, nil
	}
	return s.verify(ctx, fresh), nil
}

func (s *Session) verify(ctx context.Context, keepToken bool) State {
	u, err := s.backend.Me(ctx)
	if err == nil && u != nil {
		s.setUser(u)
		s.logger.Printf("[Session] authenticated email=%s level=%s", u.Email, u.AdminLevel)
		return Authenticated
	}
	s.logger.Printf("[Session] identity check failed fresh_token=%v err=%v", keepToken, err)
	if !keepToken {
		if cerr := s.store.Clear(ctx); cerr != nil {
			s.logger.Printf("[Session] clear token failed err=%v", cerr)
		}
	}
	s.setUser(nil)
	return Unauthenticated
}

func (s *Session) setUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	s.caps = permissions.For(u)
	if u != nil {
		s.state = Authenticated
	} else {
		s.state = Unauthenticated
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	cp.Permissions = s.user.Permissions.Clone()
	return &cp
}

// Capabilities is recomputed on every user change.
func (s *Session) Capabilities() permissions.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// RequireUser returns the signed-in user or ErrNoSession.
func (s *Session) RequireUser() (*models.User, error) {
	if u := s.User(); u != nil {
		return u, nil
	}
	return nil, ErrNoSession
}

// UpdateUser applies fn to the in-memory user, e.g. after a profile edit.
func (s *Session) UpdateUser(fn func(u *models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || fn == nil {
		return
	}
	cp := *s.user
	cp.Permissions = s.user.Permissions.Clone()
	fn(&cp)
	s.user = &cp
	s.caps = permissions.For(&cp)
}

// Logout forgets the token and user. No server call is made.
func (s *Session) Logout(ctx context.Context) error {
	err := s.store.Clear(ctx)
	s.setUser(nil)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Expire is called when the backend rejects the token mid-session.
func (s *Session) Expire() {
	if s.State() != Authenticated {
		return
	}
	s.logger.Printf("[Session] token rejected, signing out")
	if err := s.store.Clear(context.Background()); err != nil {
		s.logger.Printf("[Session] clear token failed err=%v", err)
	}
	s.setUser(nil)
}

// Adopt stores a token handed over after start-up (the serve landing
// route) and verifies it. Like a landing token at Init, it is kept when
// the first identity check fails.
func (s *Session) Adopt(ctx context.Context, token string) (State, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.State(), nil
	}
	// Leaving Authenticated first keeps Expire from clearing the new token
	// when the client's 401 hook fires during verify.
	s.mu.Lock()
	s.initialized = true
	prev := s.state
	s.state = Authenticating
	s.mu.Unlock()
	if err := s.store.Save(ctx, token); err != nil {
		s.mu.Lock()
		if s.state == Authenticating {
			s.state = prev
		}
		s.mu.Unlock()
		return s.State(), fmt.Errorf("persist landing token: %w", err)
	}
	return s.verify(ctx, true), nil
}

// Refresh re-reads the identity endpoint for the current token.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	token, err := s.store.Load(ctx)
	if err != nil {
		return s.State(), fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		s.setUser(nil)
		return Unauthenticated, nil
	}
	return s.verify(ctx, false), nil
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Lookup returns the session carried by ctx, if any.
func Lookup(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// FromContext returns the session carried by ctx. A missing session is a
// wiring bug, so it panics instead of returning an empty session.
func FromContext(ctx context.Context) *Session {
	s, ok := Lookup(ctx)
	if !ok {
		panic("session: FromContext called outside a session context; wrap the context with session.NewContext")
	}
	return s
}
