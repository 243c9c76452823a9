package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/cache"
	"github.com/pashuvlogs/home-app/internal/database"
	"github.com/pashuvlogs/home-app/internal/domain"
	"github.com/pashuvlogs/home-app/internal/middleware"
	"github.com/pashuvlogs/home-app/internal/notification"
	"github.com/pashuvlogs/home-app/internal/repository"
	"github.com/pashuvlogs/home-app/internal/service"
)

// app holds the wired components and everything that must be closed.
type app struct {
	store     domain.Store
	saveUser  func(ctx context.Context, u *domain.User) error
	health    func(ctx context.Context) error
	inbox     domain.NotificationInbox
	workflow  *service.WorkflowService
	reminders *service.ReminderService
	auth      *middleware.Authenticator
	logger    *logrus.Logger
	closers   []func() error
}

func newApp(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (*app, error) {
	cfg := cm.GetConfig()
	a := &app{logger: logger}

	var err error
	switch cfg.Database.Driver {
	case "postgres":
		err = a.openPostgres(ctx, cm)
	default:
		err = a.openSQLite(cfg.Database)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	ledger, err := a.openLedger(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier := service.NewBreakerNotifier(a.inbox, cfg.Workflow.NotificationBreaker, logger)
	machine := service.NewAssessmentStateMachine(
		service.NewScoringEngine(nil, logger),
		domain.ApprovalPolicy{AllowSeniorSkipLevel: cfg.Workflow.AllowSeniorSkipLevel},
	)

	a.workflow = service.NewWorkflowService(a.store, machine, notifier, logger)
	a.reminders = service.NewReminderService(a.store, notifier, ledger, logger)
	a.auth = middleware.NewAuthenticator(cfg.Auth, a.store.Users(), logger)
	return a, nil
}

func (a *app) openPostgres(ctx context.Context, cm domain.ConfigManager) error {
	settings := cm.GetDatabaseConfig()
	dbURL := cm.GetDatabaseConnectionString()

	if err := database.Migrate(ctx, dbURL, settings.MigrationsPath, a.logger); err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, database.ConfigFromSettings(*settings), a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { db.Close(); return nil })

	store := repository.NewPostgresStore(db.Pool, a.logger)
	a.store, a.saveUser, a.health = store, store.SaveUser, db.Health

	inbox, err := notification.NewPostgresStoreFromURL(dbURL, a.logger)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}
	a.inbox = inbox
	a.closers = append(a.closers, inbox.Close)
	return nil
}

func (a *app) openSQLite(settings domain.DatabaseConfig) error {
	store, err := repository.NewSQLiteStore(settings.SQLitePath, a.logger)
	if err != nil {
		return err
	}
	a.store, a.saveUser, a.health = store, store.SaveUser, store.Ping
	a.closers = append(a.closers, store.Close)

	inboxPath := filepath.Join(filepath.Dir(settings.SQLitePath), "notifications.db")
	inbox, err := notification.NewSQLiteStore(inboxPath, a.logger)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}
	a.inbox = inbox
	a.closers = append(a.closers, inbox.Close)
	return nil
}

// openLedger uses Redis when the cache is enabled so every instance shares
// one reminder ledger.
func (a *app) openLedger(cfg domain.CacheConfig) (domain.ReminderLedger, error) {
	if !cfg.Enabled {
		return cache.NewMemoryLedger(cfg.MaxItems, cfg.ReminderTTL), nil
	}
	ledger, err := cache.NewRedisLedger(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ledger.Close)
	return ledger, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}
