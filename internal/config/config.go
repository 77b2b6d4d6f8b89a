// Package config loads Clickcheck settings: defaults, then an optional
// YAML file, then .env and the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

const (
	DefaultFrontendURL    = "https://clickcheck-grupoclickglobal-com-br.vercel.app"
	DefaultGoogleClientID = "605011846792-s6inrmfffljk4cos19rorjjc3ncvc89i.apps.googleusercontent.com"
	DefaultPort           = "18912"
	CallbackPath          = "/google/sucesso"
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Frontend FrontendConfig `yaml:"frontend"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Token    TokenConfig    `yaml:"token"`
	Poll     PollConfig     `yaml:"poll"`
	Server   ServerConfig   `yaml:"server"`
}

type APIConfig struct {
	BaseURL string  `yaml:"base_url"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
	// WrapBodies sends JSON object bodies inside {"_b64": ...}.
	WrapBodies bool `yaml:"wrap_bodies"`
}

type FrontendConfig struct {
	URL string `yaml:"url"`
}

type OAuthConfig struct {
	// GoogleClientID empty means the backend login redirect is used.
	GoogleClientID string `yaml:"google_client_id"`
	RedirectURI    string `yaml:"redirect_uri"`
}

type TokenConfig struct {
	// File is where the CLI keeps its token. Empty means the user config dir.
	File string `yaml:"file"`
	// DatabaseURL switches the serve shell to the Postgres token store.
	DatabaseURL string `yaml:"database_url"`
	Key         string `yaml:"key"`
}

type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    api.DefaultBaseURL,
			RPS:        2,
			Burst:      4,
			WrapBodies: true,
		},
		Frontend: FrontendConfig{URL: DefaultFrontendURL},
		OAuth:    OAuthConfig{GoogleClientID: DefaultGoogleClientID},
		Poll: PollConfig{
			Interval:       15 * time.Second,
			SearchDebounce: 450 * time.Millisecond,
		},
		Server: ServerConfig{Port: DefaultPort},
	}
}

// Validate checks the settings that would otherwise fail far from here.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.RPS <= 0 {
		return fmt.Errorf("api.rps must be positive")
	}
	if c.API.Burst <= 0 {
		return fmt.Errorf("api.burst must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}

// RedirectURI is the OAuth redirect, defaulting to the front-end callback page.
func (c *Config) RedirectURI() string {
	if s := strings.TrimSpace(c.OAuth.RedirectURI); s != "" {
		return s
	}
	return strings.TrimRight(c.Frontend.URL, "/") + CallbackPath
}

// TokenFile resolves the token file path.
func (c *Config) TokenFile() (string, error) {
	if s := strings.TrimSpace(c.Token.File); s != "" {
		return s, nil
	}
	return tokenstore.DefaultPath()
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
