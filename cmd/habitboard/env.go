package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/app"
	"github.com/nhle/habitboard/internal/auth"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/credential"
	"github.com/nhle/habitboard/internal/dashboard"
	"github.com/nhle/habitboard/internal/localstore"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
	"github.com/nhle/habitboard/internal/profile"
	"github.com/nhle/habitboard/internal/query"
	"github.com/nhle/habitboard/internal/store"
	appsync "github.com/nhle/habitboard/internal/sync"
)

// env is everything a command needs, built from one config file.
type env struct {
	cfg   *model.AppConfig
	db    *store.SQLiteStore
	local *localstore.Store
	deps  app.Deps
}

func openEnv(path string) (*env, error) {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	dbDir := filepath.Dir(cfg.Storage.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dbDir, err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	vault, err := credential.Open(model.ConfigDir())
	if err != nil {
		db.Close()
		return nil, err
	}
	return newEnv(cfg, db, localstore.New(vault, db)), nil
}

// newEnv wires the services over an open database and local store. A token
// the server rejects is cleared along with the profile and the cache, for
// every command.
func newEnv(cfg *model.AppConfig, db *store.SQLiteStore, local *localstore.Store) *env {
	client := api.NewClient(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.Timeout(),
		UserAgent: "habitboard/" + Version,
	}, local)

	cacheStore := cache.New(cache.Options{
		DefaultStaleTime: 30 * time.Second,
		StaleTimes:       cfg.StaleTimes(),
	})
	queries := query.New(cacheStore, client)
	profiles := profile.New(cacheStore, client, local)

	engine := mutation.New(cacheStore, client, mutation.Options{
		Timeout: cfg.Timeout(),
		Observer: func(ev mutation.Event) {
			if ev.State.Done() {
				log.Printf("mutation %s %s task %d: %s", ev.ID, ev.Op, ev.TaskID, ev.State)
			}
		},
	})

	sessions := auth.New(client, local, cacheStore)
	client.OnUnauthorized(sessions.Expire)

	return &env{
		cfg:   cfg,
		db:    db,
		local: local,
		deps: app.Deps{
			Client:    client,
			Store:     cacheStore,
			Queries:   queries,
			Engine:    engine,
			Profile:   profiles,
			Auth:      sessions,
			Dashboard: dashboard.NewLoader(queries, cfg.Display.StreakFallback),
			Poller:    appsync.New(queries, profiles, cfg.RefreshInterval()),
			Settings:  local,
			Now:       time.Now,
		},
	}
}

func (e *env) Close() error {
	return e.db.Close()
}

// requireSession fails fast for commands that need a signed-in user.
func (e *env) requireSession() error {
	if !e.deps.Auth.SignedIn() {
		return fmt.Errorf("not signed in: run `habitboard login` first")
	}
	return nil
}
