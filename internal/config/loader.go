package config

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvConfigFile  = "CLICKCHECK_CONFIG"
	UserConfigDir  = ".config/clickcheck"
	UserConfigFile = "config.yaml"
)

// Loader resolves a Config. Every dependency is a field so tests can run
// without touching the real environment or home directory.
type Loader struct {
	Getenv  func(string) string
	LoadEnv func(...string) error
	HomeDir func() (string, error)
	Logger  *log.Logger
}

func NewLoader(logger *log.Logger) *Loader {
	return &Loader{
		Getenv:  os.Getenv,
		LoadEnv: godotenv.Load,
		HomeDir: os.UserHomeDir,
		Logger:  logger,
	}
}

// Load applies defaults, the YAML file and then the environment. A
// missing file is fine; an unreadable or malformed one is an error.
func (l *Loader) Load() (*Config, error) {
	if l.Logger == nil {
		l.Logger = log.New(io.Discard, "", 0)
	}
	if l.Getenv == nil {
		l.Getenv = os.Getenv
	}
	if l.LoadEnv != nil {
		_ = l.LoadEnv()
	}

	cfg := DefaultConfig()
	if path := l.filePath(); path != "" {
		fromFile, err := LoadFromFile(path)
		switch {
		case err == nil:
			l.Logger.Printf("[Config] loaded path=%s", path)
			cfg = fromFile
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyEnv(cfg, l.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) filePath() string {
	if p := strings.TrimSpace(l.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	if l.HomeDir == nil {
		return ""
	}
	home, err := l.HomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.API.BaseURL, "CLICKCHECK_API_URL")
	setString(&cfg.Frontend.URL, "CLICKCHECK_FRONTEND_URL")
	setString(&cfg.OAuth.GoogleClientID, "CLICKCHECK_GOOGLE_CLIENT_ID")
	setString(&cfg.OAuth.RedirectURI, "CLICKCHECK_REDIRECT_URI")
	setString(&cfg.Token.File, "CLICKCHECK_TOKEN_FILE")
	setString(&cfg.Token.DatabaseURL, "DATABASE_URL")

	cfg.Poll.Interval = parseIntervalFromEnv(getenv, "CLICKCHECK_POLL_INTERVAL_SECONDS", cfg.Poll.Interval)
	if ms := parsePositiveInt(getenv("CLICKCHECK_SEARCH_DEBOUNCE_MS")); ms > 0 {
		cfg.Poll.SearchDebounce = time.Duration(ms) * time.Millisecond
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(getenv("CLICKCHECK_API_RPS")), 64); err == nil && v > 0 {
		cfg.API.RPS = v
	}
	if n := parsePositiveInt(getenv("CLICKCHECK_API_BURST")); n > 0 {
		cfg.API.Burst = n
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv("CLICKCHECK_WRAP_BODIES"))); err == nil {
		cfg.API.WrapBodies = v
	}
	cfg.Server.Port = resolvePort(getenv, cfg.Server.Port)
}

// parseIntervalFromEnv reads a whole number of seconds. Blank, invalid
// and non-positive values keep def.
func parseIntervalFromEnv(getenv func(string) string, key string, def time.Duration) time.Duration {
	if secs := parsePositiveInt(getenv(key)); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func resolvePort(getenv func(string) string, def string) string {
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		return port
	}
	if def == "" {
		return DefaultPort
	}
	return def
}

func parsePositiveInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
