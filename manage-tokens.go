package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/config"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

// Inspects and prunes the serve shell's Postgres token store.
//
//	go run . list
//	go run . clear [key]
//	go run . prune
func main() {
	cfg, err := config.NewLoader(log.New(io.Discard, "", 0)).Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Token.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", cfg.Token.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := manageTokens(context.Background(), db, os.Args[1:], os.Stdout, time.Now()); err != nil {
		log.Fatal(err)
	}
}

func manageTokens(ctx context.Context, db *sql.DB, args []string, w io.Writer, now time.Time) error {
	cmd := "list"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "list":
		return listTokens(ctx, db, w, now)
	case "clear":
		key := tokenstore.DefaultKey
		if len(args) > 1 {
			key = args[1]
		}
		store := &tokenstore.SQLStore{DB: db, Key: key}
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintf(w, "Cleared token %s\n", key)
		return nil
	case "prune":
		return pruneTokens(ctx, db, w, now)
	default:
		return fmt.Errorf("unknown command %q (list, clear, prune)", cmd)
	}
}

type storedToken struct {
	key       string
	token     string
	updatedAt time.Time
}

func loadTokens(ctx context.Context, db *sql.DB) ([]storedToken, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, token, updated_at FROM public.session_tokens ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedToken
	for rows.Next() {
		var t storedToken
		if err := rows.Scan(&t.key, &t.token, &t.updatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func expiryLabel(token string, now time.Time) (string, bool) {
	exp, ok := session.TokenExpiry(token)
	if !ok {
		return "no expiry", false
	}
	if !exp.After(now) {
		return "expired " + exp.Format(time.RFC3339), true
	}
	return "expires " + exp.Format(time.RFC3339), false
}

func listTokens(ctx context.Context, db *sql.DB, w io.Writer, now time.Time) error {
	tokens, err := loadTokens(ctx, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Found %d stored tokens\n", len(tokens))
	for _, t := range tokens {
		label, _ := expiryLabel(t.token, now)
		fmt.Fprintf(w, "- %s: updated %s, %s\n", t.key, t.updatedAt.Format(time.RFC3339), label)
	}
	return nil
}

// pruneTokens deletes every token whose exp claim has passed.
func pruneTokens(ctx context.Context, db *sql.DB, w io.Writer, now time.Time) error {
	tokens, err := loadTokens(ctx, db)
	if err != nil {
		return err
	}
	pruned := 0
	for _, t := range tokens {
		if _, expired := expiryLabel(t.token, now); !expired {
			continue
		}
		store := &tokenstore.SQLStore{DB: db, Key: t.key}
		if err := store.Clear(ctx); err != nil {
			log.Printf("Error clearing %s: %v", t.key, err)
			continue
		}
		pruned++
	}
	fmt.Fprintf(w, "Pruned %d expired tokens\n", pruned)
	return nil
}
