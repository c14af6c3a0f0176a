package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumtrader/academy/internal/events"
	"github.com/quantumtrader/academy/internal/platform/cache"
	"github.com/quantumtrader/academy/internal/platform/config"
	"github.com/quantumtrader/academy/internal/platform/database"
	"github.com/quantumtrader/academy/internal/progress"
)

// deps are the connections shared by every learner session.
type deps struct {
	backend progress.Backend
	events  events.EventLogger
	closers []func() error
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// openDeps connects the configured storage backend. An unreachable backend
// at startup is an error.
func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{events: events.NopEventLogger{}}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		d.backend = progress.NewMemoryBackend()

	case config.StorageSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b, err := progress.NewSQLiteBackend(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		d.backend = b
		d.closers = append(d.closers, b.Close)

	case config.StoragePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() error { db.Close(); return nil })
		b, err := progress.NewPostgresBackend(ctx, db.Pool)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.backend = b
		if cfg.Events.Enabled {
			logger, err := events.NewPostgresEventLogger(ctx, db.Pool)
			if err != nil {
				d.Close()
				return nil, err
			}
			d.events = logger
		}

	case config.StorageRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, c.Close)
		b, err := progress.NewRedisBackend(c.Client)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.backend = b

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return d, nil
}
