package main

import (
	"context"
	"fmt"

	"github.com/courseshare/courseshare-backend/pkg/config"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/storage"
	"github.com/courseshare/courseshare-backend/pkg/storage/gcs"
	"github.com/courseshare/courseshare-backend/pkg/storage/local"
	"github.com/courseshare/courseshare-backend/pkg/storage/s3"
)

type fileStore interface {
	storage.FileStore
	storage.Pinger
}

// newFileStore builds the configured blob backend. The returned closer is never nil.
func newFileStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (fileStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Driver {
	case config.StorageDriverGCS:
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	case config.StorageDriverS3:
		store, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.StorageDriverLocal, "":
		store, err := local.New(cfg.Storage.LocalPath)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
