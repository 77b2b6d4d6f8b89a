package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envOf(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func noHome() (string, error) { return "", os.ErrNotExist }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.API.BaseURL != "https://clickcheck.grupoclickglobal.com.br/api" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Poll.Interval != 15*time.Second {
		t.Fatalf("expected 15s poll got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.SearchDebounce != 450*time.Millisecond {
		t.Fatalf("expected 450ms debounce got %s", cfg.Poll.SearchDebounce)
	}
	if cfg.API.RPS != 2 || cfg.API.Burst != 4 {
		t.Fatalf("unexpected limiter %v/%d", cfg.API.RPS, cfg.API.Burst)
	}
	if cfg.Server.Port != "18912" || !cfg.API.WrapBodies {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"blank base url", func(c *Config) { c.API.BaseURL = " " }},
		{"zero rps", func(c *Config) { c.API.RPS = 0 }},
		{"zero burst", func(c *Config) { c.API.Burst = 0 }},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRedirectURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Frontend.URL = "http://localhost:5173/"
	if got := cfg.RedirectURI(); got != "http://localhost:5173/google/sucesso" {
		t.Fatalf("unexpected redirect %q", got)
	}
	cfg.OAuth.RedirectURI = "http://app/cb"
	if got := cfg.RedirectURI(); got != "http://app/cb" {
		t.Fatalf("explicit redirect should win, got %q", got)
	}
}

func TestParseIntervalFromEnv(t *testing.T) {
	def := 7 * time.Second
	for _, v := range []string{"", "0", "-1", "abc"} {
		if got := parseIntervalFromEnv(envOf(map[string]string{"X": v}), "X", def); got != def {
			t.Fatalf("value %q: expected default got %s", v, got)
		}
	}
	if got := parseIntervalFromEnv(envOf(map[string]string{"X": "3"}), "X", def); got != 3*time.Second {
		t.Fatalf("expected 3s got %s", got)
	}
}

func TestResolvePort(t *testing.T) {
	if got := resolvePort(envOf(nil), ""); got != "18912" {
		t.Fatalf("expected default port got %q", got)
	}
	if got := resolvePort(envOf(map[string]string{"PORT": "12345"}), "18912"); got != "12345" {
		t.Fatalf("expected env port got %q", got)
	}
}

func TestLoader_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "api:\n  base_url: http://file/api\n  burst: 9\npoll:\n  interval: 30s\nfrontend:\n  url: http://front\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := &Loader{
		Getenv: envOf(map[string]string{
			EnvConfigFile:                      path,
			"CLICKCHECK_API_URL":               "http://env/api",
			"CLICKCHECK_POLL_INTERVAL_SECONDS": "nope",
			"CLICKCHECK_SEARCH_DEBOUNCE_MS":    "100",
			"CLICKCHECK_WRAP_BODIES":           "false",
			"DATABASE_URL":                     "postgres://db",
			"PORT":                             "9000",
		}),
		HomeDir: noHome,
	}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://env/api" {
		t.Fatalf("env should override file, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Burst != 9 || cfg.API.RPS != 2 {
		t.Fatalf("file burst with default rps expected, got %v/%d", cfg.API.RPS, cfg.API.Burst)
	}
	if cfg.Poll.Interval != 30*time.Second {
		t.Fatalf("invalid env should keep file interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.SearchDebounce != 100*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.Poll.SearchDebounce)
	}
	if cfg.API.WrapBodies || cfg.Token.DatabaseURL != "postgres://db" || cfg.Server.Port != "9000" {
		t.Fatalf("unexpected env overrides %#v", cfg)
	}
	if cfg.Frontend.URL != "http://front" {
		t.Fatalf("unexpected frontend %q", cfg.Frontend.URL)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loaded := false
	l := &Loader{
		Getenv:  envOf(map[string]string{EnvConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}),
		LoadEnv: func(...string) error { loaded = true; return nil },
		HomeDir: noHome,
	}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded {
		t.Fatalf("expected .env loader to run")
	}
	if cfg.Server.Port != DefaultPort {
		t.Fatalf("expected defaults got %#v", cfg.Server)
	}
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := &Loader{Getenv: envOf(map[string]string{EnvConfigFile: path}), HomeDir: noHome}
	if _, err := l.Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Token.Key = "ops"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.Token.Key != "ops" || back.Poll.Interval != cfg.Poll.Interval {
		t.Fatalf("unexpected round trip %#v", back)
	}
}

func TestTokenFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.File = "/tmp/x/token"
	got, err := cfg.TokenFile()
	if err != nil || got != "/tmp/x/token" {
		t.Fatalf("unexpected %q %v", got, err)
	}
}
