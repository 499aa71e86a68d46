// Package app is the composition root: it wires configuration, logging,
// durable storage, the state stores, the request pipeline, the remote data
// cache, and the route tree into the coordinator a presentation layer
// embeds.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/api"
	"github.com/lt-jshipley/appcore/internal/cache"
	"github.com/lt-jshipley/appcore/internal/core/ports"
	"github.com/lt-jshipley/appcore/internal/core/service"
	"github.com/lt-jshipley/appcore/internal/infrastructure/storage"
	"github.com/lt-jshipley/appcore/internal/nav"
	"github.com/lt-jshipley/appcore/internal/pkg/config"
	"github.com/lt-jshipley/appcore/pkg/logger"
)

const requestTimeout = 30 * time.Second

// App bundles the coordinator's components. Fields are exported because
// the presentation layer consumes them directly.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Sessions *service.SessionStore
	Prefs    *service.PreferenceStore
	API      *api.Client
	Auth     *api.Auth
	Cache    *cache.Cache
	Router   *nav.Router

	cancelGC context.CancelFunc
}

// New wires an App from configuration. ctx bounds only startup work
// (e.g. the redis connectivity ping).
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	kv, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions := service.NewSessionStore(kv, log)
	prefs := service.NewPreferenceStore(kv, cfg.DefaultLocale, log)

	client, err := api.NewClient(
		cfg.APIBaseURL,
		&http.Client{Timeout: requestTimeout},
		func() string { return sessions.State().Token },
		log,
	)
	if err != nil {
		return nil, err
	}

	dataCache := cache.New(cache.Config{
		StaleAfter:  cfg.Cache.StaleAfter,
		GCAfter:     cfg.Cache.GCAfter,
		ReadRetries: cfg.Cache.ReadRetries,
	}, log)

	gcCtx, cancel := context.WithCancel(context.Background())
	go dataCache.Run(gcCtx)

	return &App{
		Config:   cfg,
		Log:      log,
		Sessions: sessions,
		Prefs:    prefs,
		API:      client,
		Auth:     api.NewAuth(client),
		Cache:    dataCache,
		cancelGC: cancel,
	}, nil
}

// SetRoutes installs the application's route tree. Call once at startup,
// before the first Navigate.
func (a *App) SetRoutes(roots ...*nav.Route) {
	a.Router = nav.NewRouter(a.Log, roots...)
}

// Login authenticates and atomically installs the resulting session, the
// one place the pipeline writes back into the session store.
func (a *App) Login(ctx context.Context, email, password string) error {
	res, err := a.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.Sessions.SetAuth(res.Token, res.User)
	return nil
}

// Register creates an account and installs the resulting session.
func (a *App) Register(ctx context.Context, name, email, password string) error {
	res, err := a.Auth.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	a.Sessions.SetAuth(res.Token, res.User)
	return nil
}

// Close stops background work. Safe to call more than once.
func (a *App) Close() {
	if a.cancelGC != nil {
		a.cancelGC()
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (ports.KV, error) {
	if cfg.Redis.Addr != "" {
		client, err := storage.Connect(ctx, storage.RedisConfig{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return storage.NewRedisKV(client), nil
	}

	dir, err := cfg.StatePath()
	if err != nil {
		return nil, err
	}
	kv, err := storage.NewFileKV(dir)
	if err != nil {
		return nil, err
	}
	return kv, nil
}
