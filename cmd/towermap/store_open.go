package main

import (
	"fmt"

	"towermap/internal/blobstore"
	"towermap/internal/config"
	"towermap/internal/store"
)

func storeOptions(cfg *config.Config) (store.Options, error) {
	if cfg == nil {
		return store.Options{}, fmt.Errorf("config not initialized")
	}
	opts := store.Options{
		Driver:       cfg.DB.Driver,
		Path:         cfg.DB.Path,
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Name:         cfg.DB.Name,
		MaxOpenConns: cfg.DB.MaxOpenConns,
	}
	switch opts.Driver {
	case store.DriverSQLite:
		if opts.Path == "" {
			return opts, fmt.Errorf("db path is required")
		}
	case store.DriverMySQL:
		if opts.Host == "" || opts.Name == "" {
			return opts, fmt.Errorf("db.host and db.name are required for mysql")
		}
	default:
		return opts, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
	return opts, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	return store.OpenWithOptions(opts)
}

func openImages(cfg *config.Config) (*blobstore.LocalDir, error) {
	if cfg.Images.Dir == "" {
		return nil, fmt.Errorf("images dir is required")
	}
	return blobstore.NewLocalDir(cfg.Images.Dir)
}

// dbTarget describes the database for log lines without exposing credentials.
func dbTarget(cfg *config.Config) string {
	if cfg.DB.Driver == store.DriverMySQL {
		return fmt.Sprintf("mysql://%s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	}
	return cfg.DB.Path
}
