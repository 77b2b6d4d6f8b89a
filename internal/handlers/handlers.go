// Package handlers is the HTTP surface of the serve shell: the OAuth
// landing route, JSON views over the backend and the lifecycle actions.
package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/goals"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/invites"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/metrics"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/realtime"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/reports"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

type Handler struct {
	sess     *session.Session
	requests *validation.Service
	board    *validation.Board
	reports  *reports.Service
	goals    *goals.Service
	invites  *invites.Service
	hub      *realtime.Hub
	metrics  *metrics.Metrics
	frontend string
	logger   *log.Logger
	now      func() time.Time
}

type Options struct {
	// FrontendURL is where the browser lands after the OAuth callback.
	// Empty keeps the redirect relative to this server.
	FrontendURL string
	PageSize    int
	Hub         *realtime.Hub
	Metrics     *metrics.Metrics
	Logger      *log.Logger
	Now         func() time.Time
}

func New(sess *session.Session, client *api.Client, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hub == nil {
		opts.Hub = realtime.NewHub(opts.Logger)
	}
	return &Handler{
		sess:     sess,
		requests: validation.NewService(client, sess, opts.Logger),
		board:    validation.NewBoard(client, sess, opts.PageSize, opts.Logger),
		reports:  &reports.Service{API: client, Caps: sess},
		goals:    &goals.Service{API: client, Caps: sess},
		invites:  &invites.Service{API: client, FrontendURL: opts.FrontendURL, Caps: sess},
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		frontend: strings.TrimRight(opts.FrontendURL, "/"),
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// channel is the realtime channel of the signed-in operator.
func (h *Handler) channel(*http.Request) string {
	return h.sess.Capabilities().Email()
}

// Refresh reloads the board and pushes the result to subscribers. The
// request poller drives it.
func (h *Handler) Refresh(ctx context.Context) error {
	if h.sess.State() != session.Authenticated {
		h.metrics.SetAuthenticated(false)
		return nil
	}
	h.metrics.SetAuthenticated(true)
	err := h.board.Refresh(ctx)
	v := h.board.View()
	ev := realtime.Event{
		Type:  "board",
		Tab:   string(v.Filter.Tab),
		Page:  v.Page,
		Total: int(v.Meta.Total),
		IDs:   idsOf(v.Items),
	}
	if err != nil {
		ev.Type = "board_error"
		ev.Error = err.Error()
	}
	h.hub.Emit(h.channel(nil), ev)
	return err
}

// Close detaches the board so late poll responses are dropped.
func (h *Handler) Close() { h.board.Close() }

func idsOf(items []models.ValidationRequest) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID.String())
	}
	return out
}

func (h *Handler) emitTransition(id models.ID, status models.Status) {
	h.hub.Emit(h.channel(nil), realtime.Event{Type: "transition", IDs: []string{id.String()}, Status: string(status)})
}

// OAuthLanding finishes a sign-in. Either the backend handed over a token
// directly (?token=) or Google sent an authorization code (?code=).
func (h *Handler) OAuthLanding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if tok := strings.TrimSpace(q.Get("token")); tok != "" {
		st, err := h.sess.Adopt(r.Context(), tok)
		if err != nil {
			h.logger.Printf("[Serve] landing token failed err=%v", err)
			http.Redirect(w, r, h.frontend+session.OutcomeServerFail.RedirectPath(), http.StatusFound)
			return
		}
		h.metrics.SetAuthenticated(st == session.Authenticated)
		http.Redirect(w, r, h.frontend+session.OutcomeSuccess.RedirectPath(), http.StatusFound)
		return
	}
	outcome, err := h.sess.CompleteCallback(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Printf("[Serve] callback outcome=%s err=%v", outcome, err)
	}
	h.metrics.SetAuthenticated(h.sess.State() == session.Authenticated)
	http.Redirect(w, r, h.frontend+outcome.RedirectPath(), http.StatusFound)
}

type navItem struct {
	Name string `json:"name"`
	Href string `json:"href"`
	Icon string `json:"icon"`
}

type sessionView struct {
	State      string       `json:"state"`
	User       *models.User `json:"user"`
	IsAdmin    bool         `json:"is_admin"`
	IsUser     bool         `json:"is_user"`
	IsGuest    bool         `json:"is_guest"`
	Navigation []navItem    `json:"navigation"`
	Tabs       []tabView    `json:"tabs"`
	LoginURL   string       `json:"login_url,omitempty"`
}

type tabView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	c := h.sess.Capabilities()
	out := sessionView{
		State:   h.sess.State().String(),
		User:    h.sess.User(),
		IsAdmin: c.IsAdmin(),
		IsUser:  c.IsUser(),
		IsGuest: c.IsGuest(),
	}
	for _, n := range permissions.Navigation(c) {
		out.Navigation = append(out.Navigation, navItem{Name: n.Name, Href: n.Href, Icon: n.Icon})
	}
	for _, t := range validation.Tabs(c) {
		out.Tabs = append(out.Tabs, tabView{Key: string(t), Label: t.Label()})
	}
	if !c.Authenticated() {
		out.LoginURL = h.sess.LoginURL(r.URL.Query().Get("invite"))
	}
	writeJSON(w, http.StatusOK, out)
}

// Login sends the browser to the sign-in page, bound to an invite when
// one is given.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.sess.LoginURL(r.URL.Query().Get("invite")), http.StatusFound)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.metrics.SetAuthenticated(false)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) VerifyInvite(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	v := h.invites.Verify(r.Context(), token)
	out := map[string]any{"verification": v}
	if v.Valid {
		out["accept_url"] = h.invites.AcceptURL(token)
	}
	writeJSON(w, http.StatusOK, out)
}
