// Package storage opens the record backend selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"aurora/internal/config"
	"aurora/internal/record"
	"aurora/internal/storage/gormstore"
	"aurora/internal/storage/jsonstore"
	"aurora/internal/storage/mongostore"
	"aurora/internal/storage/sqlstore"
	"aurora/pkg/retrylimit"
)

const connectAttempts = 5

// Open returns the backend named by cfg.StoreDriver. Network backends are
// retried with backoff while the server is unreachable.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Entry) (record.Store, error) {
	log = log.WithField("driver", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case config.DriverJSON:
		return jsonstore.Open(cfg.StoragePath, log)
	case config.DriverSQLite:
		return sqlstore.Open(cfg.StoragePath, log)
	case config.DriverPostgres, config.DriverMySQL:
		return connect(ctx, log, func() (record.Store, error) {
			return gormstore.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, log)
		})
	case config.DriverMongo:
		return connect(ctx, log, func() (record.Store, error) {
			return mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDB, log)
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func connect(ctx context.Context, log *logrus.Entry, open func() (record.Store, error)) (record.Store, error) {
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = connectAttempts
	retry.InitialDelay = time.Second
	retry.Logger = log

	var store record.Store
	err := retrylimit.WithRetryConfig(ctx, func() error {
		s, err := open()
		if err != nil {
			if errors.Is(err, record.ErrUnavailable) {
				return err
			}
			return retrylimit.Fatal(err)
		}
		store = s
		return nil
	}, nil, retry)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}
