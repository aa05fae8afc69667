package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/app"
	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/config"
	"github.com/nurpe/obras-service/internal/logger"
	"github.com/nurpe/obras-service/internal/store"
)

type environment struct {
	cfg     *config.Config
	log     zerolog.Logger
	backend *app.Backend
}

// workspace opens the remote store and loads every table into a fresh store.
// Configuration is read on first use so help works without it.
func (e *environment) workspace(ctx context.Context) (*store.Store, *cloudsync.Engine, error) {
	if e.cfg == nil {
		cfg, err := config.LoadForTools()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		e.cfg = cfg
		e.log = logger.New(cfg.Environment, cfg.LogLevel)
	}
	if e.backend == nil {
		backend, err := app.OpenBackend(e.cfg, e.log)
		if err != nil {
			return nil, nil, err
		}
		e.backend = backend
	}
	st := store.New()
	engine := cloudsync.NewEngine(st, e.backend.Remote, cloudsync.Options{DebounceWindow: e.cfg.Sync.Debounce}, e.log)
	if err := engine.Load(ctx); err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("load remote state: %w", err)
	}
	return st, engine, nil
}

func (e *environment) close() {
	if e.backend != nil {
		_ = e.backend.Close()
	}
}

func envFrom(args []interface{}) *environment {
	if len(args) == 0 {
		return nil
	}
	env, _ := args[0].(*environment)
	return env
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}
