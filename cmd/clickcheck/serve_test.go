package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/config"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/handlers"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.Poll.Interval = 0
	a := &app{cfg: cfg, flags: &globalFlags{}, logger: log.New(io.Discard, "", 0), out: io.Discard}
	a.wire(tokenstore.NewMemoryStore(""), nil)
	return a
}

func TestBuildRouter_HealthOK(t *testing.T) {
	store := tokenstore.NewMemoryStore("")
	client := api.New("http://127.0.0.1:1", store)
	sess := session.New(store, client, session.Options{Logger: log.New(io.Discard, "", 0)})
	r := buildRouter(handlers.New(sess, client, handlers.Options{}), sess)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body == "" || body[0] != '{' {
		t.Fatalf("expected json response, got %q", body)
	}
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	store := tokenstore.NewMemoryStore("")
	client := api.New("http://127.0.0.1:1", store)
	sess := session.New(store, client, session.Options{Logger: log.New(io.Discard, "", 0)})
	r := buildRouter(handlers.New(sess, client, handlers.Options{}), sess)

	req := httptest.NewRequest(http.MethodOptions, "/api/central", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS allow-origin header, got none (status %d)", rr.Code)
	}
}

func TestBuildRouter_GatesAPIWithoutSession(t *testing.T) {
	store := tokenstore.NewMemoryStore("")
	client := api.New("http://127.0.0.1:1", store)
	sess := session.New(store, client, session.Options{Logger: log.New(io.Discard, "", 0)})
	r := buildRouter(handlers.New(sess, client, handlers.Options{}), sess)

	for path, want := range map[string]int{
		"/api/central": http.StatusUnauthorized,
		"/api/session": http.StatusOK,
		"/health":      http.StatusOK,
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d (%s)", path, want, rr.Code, rr.Body.String())
		}
	}
}

func TestRun_Smoke_NoRealListen(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT token FROM public.session_tokens WHERE key = \$1`).
		WithArgs(tokenstore.DefaultKey).
		WillReturnRows(sqlmock.NewRows([]string{"token"}))

	stop := make(chan os.Signal, 1)
	stop <- os.Interrupt

	a := testApp(t)
	a.cfg.Token.DatabaseURL = "postgres://example"

	migrated := false
	d := deps{
		openDB: func(driverName, dataSourceName string) (*sql.DB, error) {
			if driverName != "postgres" || dataSourceName != "postgres://example" {
				t.Fatalf("unexpected open %q %q", driverName, dataSourceName)
			}
			return db, nil
		},
		migrateUp: func(*sql.DB) error { migrated = true; return nil },
		listenAndServe: func(*http.Server) error {
			// simulate a clean shutdown
			return http.ErrServerClosed
		},
		stopCh: stop,
	}

	if err := run(context.Background(), a, d); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !migrated {
		t.Fatalf("expected migrations to run")
	}
	if _, ok := a.store.(*tokenstore.SQLStore); !ok {
		t.Fatalf("expected the database token store, got %T", a.store)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestRun_WithoutDatabaseKeepsFileStore(t *testing.T) {
	a := testApp(t)
	var addr string
	err := run(context.Background(), a, deps{
		listenAndServe: func(s *http.Server) error {
			addr = s.Addr
			return http.ErrServerClosed
		},
		stopCh: make(chan os.Signal, 1),
	})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if addr != ":"+config.DefaultPort {
		t.Fatalf("expected default port, got %q", addr)
	}
	if _, ok := a.store.(*tokenstore.MemoryStore); !ok {
		t.Fatalf("expected the original store, got %T", a.store)
	}
}

func TestRun_OpenDBFails(t *testing.T) {
	a := testApp(t)
	a.cfg.Token.DatabaseURL = "postgres://example"
	err := run(context.Background(), a, deps{
		openDB: func(string, string) (*sql.DB, error) { return nil, errors.New("boom") },
		listenAndServe: func(*http.Server) error {
			t.Fatalf("listen should not be reached")
			return nil
		},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRun_MissingOpenDB(t *testing.T) {
	a := testApp(t)
	a.cfg.Token.DatabaseURL = "postgres://example"
	err := run(context.Background(), a, deps{
		listenAndServe: func(*http.Server) error { return http.ErrServerClosed },
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRun_ListenError(t *testing.T) {
	a := testApp(t)
	err := run(context.Background(), a, deps{
		listenAndServe: func(*http.Server) error { return errors.New("address in use") },
		stopCh:         make(chan os.Signal, 1),
	})
	if err == nil || err.Error() != "address in use" {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestDefaultDeps_HasRequiredFields(t *testing.T) {
	d := defaultDeps()
	if d.openDB == nil || d.migrateUp == nil || d.listenAndServe == nil || d.notify == nil {
		t.Fatalf("expected all default deps to be non-nil: %#v", d)
	}
}

func TestMigrateUp_NilDB(t *testing.T) {
	if err := migrateUp(nil); err == nil {
		t.Fatalf("expected error")
	}
}
