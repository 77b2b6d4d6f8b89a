package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/handlers"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/metrics"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/middleware"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/workers"
)

const migrationsURL = "file://db/migrations"

type deps struct {
	openDB         func(driverName, dataSourceName string) (*sql.DB, error)
	migrateUp      func(*sql.DB) error
	listenAndServe func(*http.Server) error
	stopCh         chan os.Signal
	notify         func(c chan<- os.Signal, sig ...os.Signal)
}

func defaultDeps() deps {
	return deps{
		openDB:         sql.Open,
		migrateUp:      migrateUp,
		listenAndServe: func(s *http.Server) error { return s.ListenAndServe() },
		notify:         signal.Notify,
	}
}

func serveCmd(a *app) *cobra.Command {
	var (
		port   string
		noPoll bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API with the background poller",
		Long: `Serves the session, the request board, the lifecycle actions and the
views as JSON under /api, the OAuth landing route at /google/sucesso,
a websocket feed at /api/events/ws and Prometheus metrics at /metrics.

With DATABASE_URL set the session token is kept in Postgres so a
restarted server stays signed in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Server.Port = port
			}
			if noPoll {
				a.cfg.Poll.Interval = 0
			}
			return run(cmd.Context(), a, defaultDeps())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default $PORT or 18912)")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "Do not refresh the board in the background")
	return cmd
}

func run(ctx context.Context, a *app, d deps) error {
	if d.listenAndServe == nil {
		return errors.New("listenAndServe dependency is required")
	}

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger = log.Default()
	m := metrics.New()

	var store tokenstore.Store = a.store
	if databaseURL := a.cfg.Token.DatabaseURL; databaseURL != "" {
		if d.openDB == nil {
			return errors.New("openDB dependency is required")
		}
		db, err := d.openDB("postgres", databaseURL)
		if err != nil {
			return fmt.Errorf("Failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(rootCtx); err != nil {
			return fmt.Errorf("Failed to ping database: %w", err)
		}
		if d.migrateUp != nil {
			if err := d.migrateUp(db); err != nil {
				return err
			}
			log.Println("Database is up-to-date")
		}
		store = &tokenstore.SQLStore{DB: db, Key: a.cfg.Token.Key}
	}
	a.wire(store, m)
	sess := a.sess

	st, err := sess.Init(rootCtx, a.flags.token)
	if err != nil {
		log.Printf("[Serve] session init err=%v", err)
	}
	m.SetAuthenticated(st == session.Authenticated)

	h := handlers.New(sess, a.client, handlers.Options{
		FrontendURL: a.cfg.Frontend.URL,
		Metrics:     m,
		Logger:      a.logger,
	})
	defer h.Close()

	srv := &http.Server{
		Handler:      buildRouter(h, sess),
		Addr:         ":" + a.cfg.Server.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	startWorkers(rootCtx, a, h, m)

	// Handle graceful shutdown on SIGINT/SIGTERM
	stop := d.stopCh
	if stop == nil {
		stop = make(chan os.Signal, 1)
		if d.notify != nil {
			d.notify(stop, os.Interrupt, syscall.SIGTERM)
		}
	}
	go func() {
		select {
		case <-stop:
		case <-rootCtx.Done():
		}
		log.Println("Shutting down server...")
		cancel()
		shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", a.cfg.Server.Port)
	if err := d.listenAndServe(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("Server stopped")
	return nil
}

// startWorkers runs the board poller and the token expiry check until ctx
// is cancelled. A zero poll interval disables the poller.
func startWorkers(ctx context.Context, a *app, h *handlers.Handler, m *metrics.Metrics) {
	if a.cfg.Poll.Interval > 0 {
		p := &workers.RequestPoller{
			Board:      h,
			IntervalMs: int(a.cfg.Poll.Interval / time.Millisecond),
			OnRefresh:  m.PollRefreshed,
			OnSkip:     m.PollSkipped,
		}
		go p.Start(ctx)
	} else {
		log.Printf("[RequestPoller] disabled")
	}

	sess := a.sess
	exp := &workers.SessionExpiryWorker{
		Tokens: a.store,
		Expiry: session.TokenExpiry,
		Verify: func(ctx context.Context) error {
			st, err := sess.Refresh(ctx)
			m.SetAuthenticated(st == session.Authenticated)
			return err
		},
	}
	go exp.Start(ctx)
}

// buildRouter wraps the routes in the session gate and then CORS, so
// preflight requests are answered before the gate sees them.
func buildRouter(h *handlers.Handler, caps middleware.CapabilitySource) http.Handler {
	r := mux.NewRouter()
	handlers.RegisterRoutes(h, r)
	gate := middleware.NewSessionGate(caps)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(gate.Middleware(r))
}

func migrateUp(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("Failed to init migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance(migrationsURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("Failed to create migrator: %w", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("Database migration failed: %w", err)
	}
	return nil
}
