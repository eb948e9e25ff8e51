package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voyago/tripsession/internal/auth"
	"github.com/voyago/tripsession/internal/client"
	"github.com/voyago/tripsession/internal/lockout"
	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/session"
	"github.com/voyago/tripsession/internal/storage"
	"github.com/voyago/tripsession/internal/storage/filestore"
	"github.com/voyago/tripsession/internal/storage/memstore"
	"github.com/voyago/tripsession/internal/storage/sqlitestore"
)

// App is the composition root: one storage adapter, one session manager,
// one auth service, wired by reference instead of package level singletons.
type App struct {
	Auth    *auth.Service
	Manager *session.Manager
	HTTP    *http.Client

	logger logger.Logger
}

func NewApp(c *Config) (*App, error) {
	log := logger.NewLogger(c.LogLevel)

	store, err := newStore(c, log)
	if err != nil {
		return nil, fmt.Errorf("error while initializing storage. Err: %w", err)
	}

	api, err := client.New(client.Config{BaseURL: c.BaseURL}, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating api client. Err: %w", err)
	}

	manager := session.NewManager(session.Config{}, store, api, log)
	tracker := lockout.New(lockout.Config{}, store, log)

	authService, err := auth.NewService(api, manager, tracker, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Client for the rest of the API: bearer injection and one 401 retry
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &client.Transport{Manager: manager, Logger: log},
	}

	return &App{
		Auth:    authService,
		Manager: manager,
		HTTP:    httpClient,
		logger:  log,
	}, nil
}

// newStore picks the configured storage backend. A file store that can't
// open degrades to memory so the session still works for this process life.
func newStore(c *Config, log logger.Logger) (storage.Store, error) {
	switch c.Storage {
	case "memory", "":
		return memstore.New(), nil
	case "file":
		s, err := filestore.New(c.StoragePath, c.StorageKey)
		if err != nil {
			log.Warn("File storage unavailable, falling back to memory", "error", err.Error())
			return memstore.New(), nil
		}
		return s, nil
	case "sqlite":
		return sqlitestore.New(c.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage)
	}
}

// Login runs the interactive login command
func (a *App) Login(ctx context.Context, email string, password string) error {
	user, err := a.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", user.Username, user.Email)
	return nil
}

// WhoAmI prints the current session snapshot
func (a *App) WhoAmI() error {
	if err := a.Manager.Restore(); err != nil {
		a.logger.Debug("No persisted session to restore")
	}

	state := a.Manager.State()
	if !state.IsAuthenticated {
		return fmt.Errorf("not authenticated")
	}

	fmt.Printf("user: %s\nrole: %s\nexpires: %s\n", state.UserID, state.Role, state.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Logout revokes and clears the session
func (a *App) Logout(ctx context.Context) {
	if err := a.Manager.Restore(); err == nil {
		a.Auth.Logout(ctx)
		return
	}
	a.Manager.ClearTokens()
}
