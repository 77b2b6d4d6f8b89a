package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL, tokenstore.NewMemoryStore(token))
	c.Logger = log.New(io.Discard, "", 0)
	return c
}

func decodeEnvelope(t *testing.T, r *http.Request) []byte {
	t.Helper()
	var env struct {
		B64 string `json:"_b64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		t.Errorf("decode envelope: %v", err)
		return nil
	}
	inner, err := base64.StdEncoding.DecodeString(env.B64)
	if err != nil {
		t.Errorf("decode base64: %v", err)
	}
	return inner
}

func TestCreateRequest_WrapsBodyAndSendsBearer(t *testing.T) {
	var gotInner []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/requests.php" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected Authorization %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("expected X-Request-ID")
		}
		gotInner = decodeEnvelope(t, r)
		_, _ = w.Write([]byte(`{"success":true,"id":9}`))
	}, "tok-1")

	res, err := c.CreateRequest(context.Background(), NewRequest{
		Title:       "Banner <X> & cia",
		PackageID:   "1",
		AssignedTo:  "v@example.com",
		Priority:    models.PriorityNormal,
		ContentURLs: []string{"http://a"},
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if res.ID != "9" || res.Request != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	// JSON.stringify does not escape HTML characters; the envelope must carry the same bytes.
	if !strings.Contains(string(gotInner), `"title":"Banner <X> & cia"`) {
		t.Fatalf("unexpected inner body %s", gotInner)
	}
	if !strings.Contains(string(gotInner), `"package_id":1`) {
		t.Fatalf("expected numeric package id, got %s", gotInner)
	}
}

func TestPlainBodies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"reason":"wrong package"}` {
			t.Errorf("unexpected body %s", b)
		}
		if r.URL.Query().Get("action") != "revert" || r.URL.Query().Get("id") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"id":5,"status":"pendente","title":"x"}`))
	}, "")
	c.PlainBodies = true

	res, err := c.RevertRequest(context.Background(), "5", "wrong package")
	if err != nil {
		t.Fatalf("RevertRequest: %v", err)
	}
	if res.Request == nil || res.Request.Status != models.StatusPending {
		t.Fatalf("expected echoed record, got %+v", res)
	}
}

func TestErrors_MessageVerbatimAndFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "1":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Apenas administradores podem reverter"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}
	}, "tok")

	err := c.DeleteRequest(context.Background(), "1")
	if err == nil || err.Error() != "Apenas administradores podem reverter" {
		t.Fatalf("expected verbatim message, got %v", err)
	}
	if StatusCode(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", StatusCode(err))
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("403 is not a lost session")
	}

	err = c.DeleteRequest(context.Background(), "2")
	if err == nil || err.Error() != DefaultErrorMessage {
		t.Fatalf("expected fallback message, got %v", err)
	}
}

func TestUnauthorized_InvokesHook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Token inválido"}`))
	}, "tok")
	called := 0
	c.OnUnauthorized = func() { called++ }

	_, err := c.Me(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if called != 1 {
		t.Fatalf("expected hook once, got %d", called)
	}
}

func TestMe_AcceptsNestedUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "me" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"user":{"id":3,"email":"ana@example.com","admin_level":"user","permissions":{"validate":true}}}`))
	}, "tok")
	u, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.Email != "ana@example.com" || !u.Permissions["validate"] {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestListRequests_BothShapes(t *testing.T) {
	shape := "paged"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tab") != "minhas" || q.Get("search") != "banner" || q.Get("page") != "2" || q.Has("assigned_to") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if shape == "paged" {
			_, _ = w.Write([]byte(`{"items":[{"id":1,"status":"pendente"}],"meta":{"page":2,"pages":3,"total":21}}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"status":"pendente"},{"id":2,"status":"aprovado"}]`))
	}, "tok")

	p := ListParams{Page: 2, Tab: "minhas", Search: "banner"}
	page, err := c.ListRequests(context.Background(), p)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(page.Items) != 1 || page.Meta.Pages != 3 || page.Meta.Total != 21 {
		t.Fatalf("unexpected page %+v", page)
	}

	shape = "bare"
	page, err = c.ListRequests(context.Background(), p)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(page.Items) != 2 || page.Meta.Pages != 1 || page.Meta.Total != 2 {
		t.Fatalf("unexpected bare page %+v", page)
	}
}

func TestResponseEnvelopeIsUnwrapped(t *testing.T) {
	inner := base64.StdEncoding.EncodeToString([]byte(`{"total":4,"pending":"2","approved":1,"rejected":1}`))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_date") != "2024-05-01" {
			t.Errorf("missing start_date in %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"_b64":"` + inner + `"}`))
	}, "tok")
	st, err := c.Stats(context.Background(), "2024-05-01", "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 4 || st.Pending != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestVerifyInvite_AnonymousAndPlain(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("verify must be anonymous")
		}
		b, _ := io.ReadAll(r.Body)
		switch string(b) {
		case `{"token":"good"}`:
			_, _ = w.Write([]byte(`{"valid":true,"email":"new@example.com","admin_level":"user","expires_at":"2024-06-01 00:00:00"}`))
		case `{"token":"used"}`:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"valid":false,"error":"Convite já utilizado"}`))
		default:
			_, _ = w.Write([]byte(`{"valid":false}`))
		}
	}, "tok")

	ctx := context.Background()
	v, err := c.VerifyInvite(ctx, "good")
	if err != nil || !v.Valid || v.Email != "new@example.com" {
		t.Fatalf("unexpected %+v err=%v", v, err)
	}
	v, err = c.VerifyInvite(ctx, "used")
	if err != nil || v.Valid || v.Error != "Convite já utilizado" {
		t.Fatalf("unexpected %+v err=%v", v, err)
	}
	v, err = c.VerifyInvite(ctx, "other")
	if err != nil || v.Error != InvalidInviteMessage {
		t.Fatalf("unexpected %+v err=%v", v, err)
	}
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("callback must be anonymous")
		}
		inner := decodeEnvelope(t, r)
		var p struct {
			Code        string `json:"code"`
			RedirectURI string `json:"redirect_uri"`
		}
		_ = json.Unmarshal(inner, &p)
		switch p.Code {
		case "good":
			_, _ = w.Write([]byte(`{"token":"jwt-1"}`))
		case "declined":
			_, _ = w.Write([]byte(`{"success":false}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"google said no"}`))
		}
	}, "stale")

	ctx := context.Background()
	if tok, err := c.ExchangeCode(ctx, "good", "https://app/google/sucesso"); err != nil || tok != "jwt-1" {
		t.Fatalf("expected jwt-1, got %q err=%v", tok, err)
	}
	if tok, err := c.ExchangeCode(ctx, "declined", "x"); err != nil || tok != "" {
		t.Fatalf("expected declined login, got %q err=%v", tok, err)
	}
	if _, err := c.ExchangeCode(ctx, "bad", "x"); err == nil || err.Error() != CallbackFailure {
		t.Fatalf("expected callback failure, got %v", err)
	}
}

func TestUpload_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if hdr.Filename != "me.png" || string(b) != "PNGDATA" {
			t.Errorf("unexpected upload %s %q", hdr.Filename, b)
		}
		_, _ = w.Write([]byte(`{"url":"https://cdn/me.png"}`))
	}, "tok")

	res, err := c.Upload(context.Background(), "/tmp/me.png", strings.NewReader("PNGDATA"))
	if err != nil || res.URL != "https://cdn/me.png" {
		t.Fatalf("unexpected %+v err=%v", res, err)
	}
}

func TestUpload_FallbackMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{}`))
	}, "tok")
	if _, err := c.Upload(context.Background(), "a.png", strings.NewReader("x")); err == nil || err.Error() != UploadErrorMessage {
		t.Fatalf("expected upload fallback, got %v", err)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRequest(method, endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+endpoint+" "+http.StatusText(status))
}

func TestObserverAndLegacyLoginURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"updated":2}`))
	}, "tok")
	obs := &recordingObserver{}
	c.Observer = obs

	res, err := c.BulkUpdateDate(context.Background(), []models.ID{"1", "2"}, "2024-01-31")
	if err != nil || res.Updated != 2 {
		t.Fatalf("unexpected %+v err=%v", res, err)
	}
	if len(obs.calls) != 1 || obs.calls[0] != "PUT requests.php#bulk-update-date OK" {
		t.Fatalf("unexpected observations %v", obs.calls)
	}
	if got := c.LegacyLoginURL("abc"); got != c.BaseURL+"/auth.php?action=login&invite=abc" {
		t.Fatalf("unexpected login url %q", got)
	}
}

func TestDecodePage_BlankLinkStatusDefaultsToPending(t *testing.T) {
	raw := []byte(`{"items":[
		{"id":1,"status":"pendente","validation_per_link":[{"url":"a","status":"aprovado"}]},
		{"id":2,"status":"em_analise","validation_per_link":[{"url":"b","status":null},{"url":"c","status":""}]}
	],"meta":{"page":1,"pages":1,"total":2}}`)
	page, err := decodePage(raw)
	if err != nil {
		t.Fatalf("decodePage: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected both rows, got %d", len(page.Items))
	}
	links := page.Items[1].ValidationPerLink
	if len(links) != 2 || links[0].Status != models.LinkPending || links[1].Status != models.LinkPending {
		t.Fatalf("expected pendente defaults, got %+v", links)
	}

	if _, err := decodePage([]byte(`[{"id":3,"status":"pendente","validation_per_link":[{"url":"d","status":"talvez"}]}]`)); err == nil {
		t.Fatalf("expected unknown link status to be rejected")
	}
}
