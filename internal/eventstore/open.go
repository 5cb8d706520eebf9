package eventstore

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// Open returns the history store selected by cfg, or nil when history is disabled.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	switch cfg.Driver {
	case config.HistoryDriverSQLite, "":
		if cfg.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o750); err != nil {
				return nil, wrap(ErrDatabaseOpenFailed, err)
			}
		}
		s, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.HistoryDriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.WrapError(ErrUnsupportedDriver, errors.CategoryConfig, ErrUnsupportedDriver.Message()).
			WithContext("driver", cfg.Driver).
			Build()
	}
}
