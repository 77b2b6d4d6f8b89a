// Package realtime pushes board updates to browser clients over websockets.
package realtime

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// Event is one message on a channel.
type Event struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`

	Tab    string   `json:"tab,omitempty"`
	Page   int      `json:"page,omitempty"`
	Total  int      `json:"total,omitempty"`
	IDs    []string `json:"ids,omitempty"`
	Status string   `json:"status,omitempty"`
	Error  string   `json:"error,omitempty"`
	At     string   `json:"at"`
}

// Hub fans messages out to every connection subscribed to a channel.
// Connections that fail a send are closed and dropped.
type Hub struct {
	Logger *log.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{Logger: logger, conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(channel string, c *websocket.Conn) {
	if h == nil || c == nil || strings.TrimSpace(channel) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.conns[channel]
	if m == nil {
		m = make(map[*websocket.Conn]struct{})
		h.conns[channel] = m
	}
	m[c] = struct{}{}
}

func (h *Hub) Remove(channel string, c *websocket.Conn) {
	if h == nil || c == nil || strings.TrimSpace(channel) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.conns[channel]
	if m == nil {
		return
	}
	delete(m, c)
	if len(m) == 0 {
		delete(h.conns, channel)
	}
}

func (h *Hub) Broadcast(channel string, msg []byte) {
	if h == nil || strings.TrimSpace(channel) == "" || len(msg) == 0 {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, 8)
	for c := range h.conns[channel] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := websocket.Message.Send(c, string(msg)); err != nil {
			_ = c.Close()
			h.Remove(channel, c)
		}
	}
}

func (h *Hub) Count(channel string) int {
	if h == nil || strings.TrimSpace(channel) == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[channel])
}

// Emit stamps ev with its channel and time and broadcasts it.
func (h *Hub) Emit(channel string, ev Event) {
	if h == nil || strings.TrimSpace(channel) == "" {
		return
	}
	ev.Channel = channel
	if strings.TrimSpace(ev.At) == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.Logger.Printf("[Realtime] marshal_failed channel=%s err=%v", channel, err)
		return
	}
	h.Logger.Printf("[Realtime] emit channel=%s type=%s total=%d subs=%d", channel, ev.Type, ev.Total, h.Count(channel))
	h.Broadcast(channel, b)
}

// Handler upgrades to a websocket subscribed to the channel that
// channelFor picks for the request. An empty channel is refused with 401.
func (h *Hub) Handler(channelFor func(r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		channel := strings.TrimSpace(channelFor(r))
		if channel == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		// x/net/websocket rejects mismatched Origin headers by default; the
		// front-end is served from a different origin, so any origin is accepted.
		ws := websocket.Server{
			Handshake: func(*websocket.Config, *http.Request) error { return nil },
			Handler: func(c *websocket.Conn) {
				h.Logger.Printf("[RealtimeWS] connect channel=%s remote=%s", channel, r.RemoteAddr)
				h.Add(channel, c)
				defer h.Remove(channel, c)
				defer h.Logger.Printf("[RealtimeWS] disconnect channel=%s remote=%s", channel, r.RemoteAddr)

				hello := Event{Type: "hello", Channel: channel, At: time.Now().UTC().Format(time.RFC3339)}
				if b, err := json.Marshal(hello); err == nil {
					_ = websocket.Message.Send(c, string(b))
				}

				// Read until the client goes away.
				for {
					var ignored string
					if err := websocket.Message.Receive(c, &ignored); err != nil {
						return
					}
				}
			},
		}
		ws.ServeHTTP(w, r)
	})
}
