package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
)

// OpenStore connects the backend selected by cfg.Driver and returns its repositories.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (*repository.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverMongo:
		client, err := NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &repository.Store{
			Images: repository.NewMongoImageRepository(db),
			Users:  repository.NewMongoUserRepository(db),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			},
			Close: client.Disconnect,
		}, nil

	case config.StoreDriverPostgres:
		if cfg.Postgres.AutoMigrate {
			if err := Migrate(cfg.Postgres.DSN); err != nil {
				return nil, err
			}
		}
		pool, err := NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		return &repository.Store{
			Images: repository.NewPostgresImageRepository(pool),
			Users:  repository.NewPostgresUserRepository(pool),
			Ping:   pool.Ping,
			Close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StoreDriverMemory:
		return repository.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
