package main

import (
	"context"
	"fmt"

	ledgerservice "alpine/internal/ledger/service"
	ledgerstore "alpine/internal/ledger/store"
	"alpine/internal/platform/bolt"
	"alpine/internal/platform/config"
	"alpine/internal/platform/postgres"
	registryservice "alpine/internal/registry/service"
	registrystore "alpine/internal/registry/store"
	txcontext "alpine/pkg/platform/tx"
)

// storage bundles both stores with the one runner they share, so a donation
// and its counter advance commit together.
type storage struct {
	registry registryservice.Store
	ledger   ledgerservice.Store
	runner   txcontext.Runner
	health   func(ctx context.Context) error
	close    func()
}

func openStorage(ctx context.Context, cfg config.Storage) (*storage, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		buckets := append(append([]string{}, registrystore.Buckets...), ledgerstore.Buckets...)
		db, err := bolt.Open(cfg.BoltPath, buckets...)
		if err != nil {
			return nil, err
		}
		return &storage{
			registry: registrystore.NewBolt(db),
			ledger:   ledgerstore.NewBolt(db),
			runner:   db,
			health:   db.Health,
			close:    func() { _ = db.Close() },
		}, nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.PostgresURL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storage{
			registry: registrystore.NewPostgres(db),
			ledger:   ledgerstore.NewPostgres(db),
			runner:   postgres.NewTxRunner(db),
			health:   db.PingContext,
			close:    func() { _ = db.Close() },
		}, nil
	case config.BackendMemory:
		return &storage{
			registry: registrystore.NewInMemory(),
			ledger:   ledgerstore.NewInMemory(),
			runner:   txcontext.NewMutexRunner(),
			health:   func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
