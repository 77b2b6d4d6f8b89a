// Command migrate manages the Postgres schema behind the serve shell's
// session token store.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/config"
)

const defaultSource = "file://db/migrations"

func main() {
	msg, err := run(os.Args[1:], defaultDeps())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(msg)
}

type deps struct {
	// databaseURL resolves DATABASE_URL through the regular config chain
	// (.env, config file, environment).
	databaseURL func() (string, error)
	openDB      func(driverName, dataSourceName string) (*sql.DB, error)
	migrateF    func(m migrator, direction string, steps int) error
}

func defaultDeps() deps {
	return deps{
		databaseURL: func() (string, error) {
			cfg, err := config.NewLoader(log.New(io.Discard, "", 0)).Load()
			if err != nil {
				return "", err
			}
			return cfg.Token.DatabaseURL, nil
		},
		openDB:   sql.Open,
		migrateF: applyDirection,
	}
}

type options struct {
	direction  string
	steps      int
	force      int
	forceDirty bool
	status     bool
	source     string
}

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

// Overridden in tests so no real Postgres is needed.
var withPostgresInstance = func(db *sql.DB) (migratedb.Driver, error) {
	return postgres.WithInstance(db, &postgres.Config{})
}

var newMigrateWithDB = func(sourceURL string, databaseName string, driver migratedb.Driver) (migrator, error) {
	return migrate.NewWithDatabaseInstance(sourceURL, databaseName, driver)
}

func newMigrator(db *sql.DB, source string) (migrator, error) {
	driver, err := withPostgresInstance(db)
	if err != nil {
		return nil, fmt.Errorf("Failed to create migration driver: %w", err)
	}
	m, err := newMigrateWithDB(source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("Failed to create migrate instance: %w", err)
	}
	return m, nil
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var o options
	fs.StringVar(&o.direction, "direction", "up", "Migration direction: up or down")
	fs.IntVar(&o.steps, "steps", 0, "Number of migration steps (0 = all)")
	fs.IntVar(&o.force, "force", -1, "Force set migration version (clears dirty state). Example: -force=1")
	fs.BoolVar(&o.forceDirty, "force-dirty", false, "If the database is dirty, force it to the current version and exit")
	fs.BoolVar(&o.status, "status", false, "Print the current schema version and exit")
	fs.StringVar(&o.source, "path", "db/migrations", "Directory holding the migration files")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.steps < 0 {
		return options{}, fmt.Errorf("Invalid steps: %d (must be >= 0)", o.steps)
	}
	o.source = sourceURL(o.source)
	switch o.direction {
	case "up", "down":
		return o, nil
	default:
		return options{}, fmt.Errorf("Invalid direction: %s (must be 'up' or 'down')", o.direction)
	}
}

func sourceURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultSource
	}
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

func run(args []string, d deps) (string, error) {
	o, err := parseArgs(args)
	if err != nil {
		return "", err
	}

	if d.databaseURL == nil {
		return "", errors.New("databaseURL dependency is required")
	}
	databaseURL, err := d.databaseURL()
	if err != nil {
		return "", fmt.Errorf("Failed to load config: %w", err)
	}
	if databaseURL == "" {
		return "", errors.New("DATABASE_URL environment variable is required")
	}

	if d.openDB == nil {
		return "", errors.New("openDB dependency is required")
	}
	db, err := d.openDB("postgres", databaseURL)
	if err != nil {
		return "", fmt.Errorf("Failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(db, o.source)
	if err != nil {
		return "", err
	}

	switch {
	case o.status:
		return status(m)
	case o.forceDirty:
		v, dirty, err := m.Version()
		if err != nil {
			return "", fmt.Errorf("Failed to read migration version: %w", err)
		}
		if !dirty {
			return "Database is not dirty (no force needed)", nil
		}
		if err := m.Force(int(v)); err != nil {
			return "", fmt.Errorf("Failed to force dirty version %d: %w", v, err)
		}
		return fmt.Sprintf("Forced dirty database to version %d", v), nil
	case o.force >= 0:
		if err := m.Force(o.force); err != nil {
			return "", fmt.Errorf("Failed to force version %d: %w", o.force, err)
		}
		return fmt.Sprintf("Forced database to version %d", o.force), nil
	}

	if d.migrateF == nil {
		return "", errors.New("migrateF dependency is required")
	}
	err = d.migrateF(m, o.direction, o.steps)
	if errors.Is(err, migrate.ErrNoChange) {
		return "No migrations to apply", nil
	}
	if err != nil {
		return "", fmt.Errorf("Migration failed: %w", err)
	}
	return fmt.Sprintf("Migration %s completed successfully", o.direction), nil
}

func status(m migrator) (string, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return "No migrations applied yet", nil
	}
	if err != nil {
		return "", fmt.Errorf("Failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Sprintf("Schema version %d (dirty)", v), nil
	}
	return fmt.Sprintf("Schema version %d", v), nil
}

func applyDirection(m migrator, direction string, steps int) error {
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("Invalid direction: %s (must be 'up' or 'down')", direction)
	}
}
