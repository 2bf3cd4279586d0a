package cli

import (
	"fmt"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/registry"
	"github.com/soyeahso/switchboard/internal/store"
)

// openStore builds the configured ConfigStore. The returned closer is
// always safe to call.
func openStore(cfg config.Config) (store.ConfigStore, func() error, error) {
	noop := func() error { return nil }
	path := paths.StorePath(cfg.Store)

	switch cfg.Store.Backend {
	case "sqlite", "":
		db, err := store.Open(path, log)
		if err != nil {
			return nil, noop, fmt.Errorf("opening database: %w", err)
		}
		return store.NewSQLiteStore(db), db.Close, nil
	case "file":
		return store.NewFileStore(path), noop, nil
	case "memory":
		return store.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// loadRegistry opens the store and loads a registry from it. Used by the
// offline management commands; the gateway wires its own.
func loadRegistry(cfg config.Config) (*registry.Registry, func() error, error) {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, closeStore, err
	}
	reg := registry.New(st, log)
	if err := reg.Load(); err != nil {
		closeStore()
		return nil, func() error { return nil }, err
	}
	return reg, closeStore, nil
}
