package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, err := websocket.Dial(url, "", "http://example.test/")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func receive(t *testing.T, c *websocket.Conn) Event {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var raw string
	if err := websocket.Message.Receive(c, &raw); err != nil {
		t.Fatalf("receive: %v", err)
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return ev
}

func TestHub_HelloThenEmit(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub.Handler(func(*http.Request) string { return "ana@x.com" }))
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	hello := receive(t, c)
	if hello.Type != "hello" || hello.Channel != "ana@x.com" {
		t.Fatalf("unexpected hello %#v", hello)
	}
	if got := hub.Count("ana@x.com"); got != 1 {
		t.Fatalf("expected 1 subscriber got %d", got)
	}

	hub.Emit("ana@x.com", Event{Type: "board", Tab: "pendentes", Total: 3, IDs: []string{"1", "2", "3"}})
	ev := receive(t, c)
	if ev.Type != "board" || ev.Total != 3 || len(ev.IDs) != 3 || ev.At == "" {
		t.Fatalf("unexpected event %#v", ev)
	}
}

func TestHub_EmptyChannelRefused(t *testing.T) {
	hub := NewHub(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	hub.Handler(func(*http.Request) string { return "  " }).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestHub_NilAndBlankAreNoops(t *testing.T) {
	var nilHub *Hub
	nilHub.Add("x", nil)
	nilHub.Broadcast("x", []byte("a"))
	nilHub.Emit("x", Event{Type: "t"})
	if nilHub.Count("x") != 0 {
		t.Fatalf("nil hub should count 0")
	}

	hub := NewHub(nil)
	hub.Broadcast("", []byte("a"))
	hub.Remove("nobody", nil)
	if hub.Count("") != 0 {
		t.Fatalf("blank channel should count 0")
	}
}
