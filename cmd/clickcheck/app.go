package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"

	"golang.org/x/time/rate"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/config"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/metrics"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
)

var errNotSignedIn = errors.New("nenhuma sessão ativa: execute `clickcheck login`")

// app is the state shared by every command of one invocation.
type app struct {
	cfg    *config.Config
	flags  *globalFlags
	logger *log.Logger
	out    io.Writer

	store  tokenstore.Store
	client *api.Client
	sess   *session.Session
}

func loadConfig(f *globalFlags, logger *log.Logger) (*config.Config, error) {
	l := config.NewLoader(logger)
	if f.configPath != "" {
		l.Getenv = func(k string) string {
			if k == config.EnvConfigFile {
				return f.configPath
			}
			return os.Getenv(k)
		}
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if f.apiURL != "" {
		cfg.API.BaseURL = f.apiURL
	}
	return cfg, nil
}

func (a *app) init(cfg *config.Config, f *globalFlags, logger *log.Logger, out io.Writer) error {
	a.cfg = cfg
	a.flags = f
	a.logger = logger
	a.out = out
	path, err := cfg.TokenFile()
	if err != nil {
		return err
	}
	a.wire(&tokenstore.FileStore{Path: path}, nil)
	return nil
}

// wire builds the API client and the session on top of store. serve
// calls it again when it switches to the database store.
func (a *app) wire(store tokenstore.Store, m *metrics.Metrics) {
	client := api.New(a.cfg.API.BaseURL, store)
	client.Logger = a.logger
	client.Limiter = rate.NewLimiter(rate.Limit(a.cfg.API.RPS), a.cfg.API.Burst)
	client.PlainBodies = !a.cfg.API.WrapBodies
	if m != nil {
		client.Observer = m
	}
	sess := session.New(store, client, session.Options{
		OAuth: session.OAuthConfig{
			ClientID:    a.cfg.OAuth.GoogleClientID,
			RedirectURI: a.cfg.RedirectURI(),
		},
		Logger: a.logger,
	})
	client.OnUnauthorized = sess.Expire

	a.store = store
	a.client = client
	a.sess = sess
}

func withSession(ctx context.Context, a *app) context.Context {
	return session.NewContext(ctx, a.sess)
}

// boot runs the session start-up, adopting --token when given.
func (a *app) boot(ctx context.Context) (session.State, error) {
	return session.FromContext(ctx).Init(ctx, a.flags.token)
}

// signedIn boots the session and fails unless it is authenticated.
func (a *app) signedIn(ctx context.Context) (*session.Session, error) {
	st, err := a.boot(ctx)
	if err != nil {
		return nil, err
	}
	if st != session.Authenticated {
		return nil, errNotSignedIn
	}
	return session.FromContext(ctx), nil
}
