// Package storage holds the key/value backends a visitor profile (identity
// plus record sets) can live in, and opens the server database.
package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cthulhu-news/internal/config"
	"cthulhu-news/internal/dedup"
)

// ErrUnknownDriver is returned by Open for unsupported profile drivers.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a dedup.Storage that owns resources.
type Store interface {
	dedup.Storage
	Close() error
}

// Open builds the profile store selected by cfg.Driver. The remote driver is
// wired by the client package and is not handled here.
func Open(ctx context.Context, cfg config.ProfileConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.ProfileMemory:
		return NewMemory(), nil
	case config.ProfileFile:
		return NewFile(cfg.Path)
	case config.ProfileSQLite:
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, db, config.DriverSQLite, cfg.Namespace, true)
	case config.ProfilePostgres:
		db, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, db, config.DriverPostgres, cfg.Namespace, true)
	case config.ProfileS3:
		return NewS3(ctx, cfg.S3, cfg.Namespace, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
