package app

import (
	"fmt"

	"libraryapi/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	DatabaseDriver string
	Store          store.Store
}

// App wires the book and loan services to a shared store.
type App struct {
	Books *BookService
	Loans *LoanService
	store store.Store
}

// New constructs the application. A Store in cfg takes precedence over the
// database settings.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gormStore, err := store.NewGormStore(cfg.DatabaseURL, store.WithDriver(cfg.DatabaseDriver))
		if err != nil {
			return nil, fmt.Errorf("init %s store: %w", cfg.DatabaseDriver, err)
		}
		dataStore = gormStore
	}
	return &App{
		Books: NewBookService(dataStore),
		Loans: NewLoanService(dataStore),
		store: dataStore,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}
