package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trackscrape/internal/components/chrono"
	"trackscrape/internal/components/telemetry"
	"trackscrape/internal/definition"
	"trackscrape/internal/indexer"
	"trackscrape/internal/sessionstore"
)

type environment struct {
	config   Config
	tel      telemetry.API
	clock    chrono.API
	sessions *sessionstore.Store
	otel     telemetry.Telemetry
}

var env *environment

func setup(ctx context.Context, path string) error {
	cfg, err := readConfig(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	telemetry.InitSlog(cfg.Debug)

	otel, err := telemetry.Setup(ctx, "trackscrape", cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	sessions, err := sessionstore.Open(cfg.Sessions)
	if err != nil {
		return err
	}

	env = &environment{
		config:   cfg,
		tel:      telemetry.NewSlogAPI(cfg.DumpDir),
		clock:    clock,
		sessions: sessions,
		otel:     otel,
	}
	return nil
}

func teardown(ctx context.Context) error {
	if env == nil {
		return nil
	}
	return errors.Join(env.sessions.Close(), env.otel.Shutdown(ctx))
}

// definitions loads the definitions directory, broken files are logged and skipped.
func (e *environment) definitions() map[string]*definition.Definition {
	defs, err := definition.LoadDir(e.config.Definitions)
	if err != nil {
		slog.Warn("some definitions failed to load", "err", err)
	}
	return defs
}

func (e *environment) indexer(ctx context.Context, site string) (*indexer.Indexer, error) {
	def, ok := e.definitions()[site]
	if !ok {
		return nil, fmt.Errorf("no definition for site %q in %s", site, e.config.Definitions)
	}
	return indexer.New(ctx, indexer.Options{
		Definition: def,
		Config:     e.config.Indexers[site],
		Tel:        e.tel,
		Clock:      e.clock,
		Sessions:   e.sessions,
		CacheTTL:   e.config.cacheTTL(),
	})
}
