package app

import (
	"context"
	"fmt"

	"growbook/internal/docstore"
	"growbook/internal/infra/docstore/firestore"
	"growbook/internal/infra/docstore/memory"
	"growbook/internal/infra/docstore/postgres"
	"growbook/internal/infra/docstore/redis"
	"growbook/internal/infra/docstore/sqlite"
	photofs "growbook/internal/infra/photostore/fs"
	photomem "growbook/internal/infra/photostore/memory"
	photos3 "growbook/internal/infra/photostore/s3"
	"growbook/internal/photos/archive"
)

// OpenDocumentStore opens the backend selected by cfg.Storage.Driver.
// Connection failures wrap docstore.ErrUnavailable.
func OpenDocumentStore(ctx context.Context, cfg Config) (docstore.Store, error) {
	switch docstore.Driver(cfg.Storage.Driver) {
	case docstore.DriverMemory:
		return memory.NewStore(), nil
	case docstore.DriverSQLite:
		s, err := sqlite.NewStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case docstore.DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case docstore.DriverRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		s, err := redis.NewStore(ctx, cfg.Redis.URL, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case docstore.DriverFirestore:
		s, err := firestore.NewStore(ctx, cfg.Firestore.Project)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Storage.Driver)
	}
}

// OpenPhotoArchive opens the archive selected by cfg.Photo.Driver.
func OpenPhotoArchive(ctx context.Context, cfg Config) (archive.Store, error) {
	switch archive.Driver(cfg.Photo.Driver) {
	case archive.DriverMemory:
		return photomem.New(), nil
	case archive.DriverFilesystem:
		s, err := photofs.New(cfg.Photo.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	case archive.DriverS3:
		s, err := photos3.New(ctx, photos3.Config{
			Bucket:    cfg.Photo.S3Bucket,
			Region:    cfg.Photo.S3Region,
			Endpoint:  cfg.Photo.S3Endpoint,
			PathStyle: cfg.Photo.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown photo driver %s", cfg.Photo.Driver)
	}
}
