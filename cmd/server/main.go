// Command server runs the housing assessment HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/api"
	"github.com/pashuvlogs/home-app/internal/config"
	"github.com/pashuvlogs/home-app/internal/database"
	"github.com/pashuvlogs/home-app/internal/domain"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: search ./config.yaml, ./config/, /etc/home-app/)")
	seedUsers := flag.String("seed-users", "", "JSON file of users to upsert before serving")
	issueToken := flag.String("issue-token", "", "print a bearer token for this user id and exit")
	rollback := flag.Int("rollback", 0, "roll back this many PostgreSQL migrations and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	configManager, err := config.NewManager(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *rollback > 0 {
		if cfg.Database.Driver != "postgres" {
			logger.Fatal("-rollback requires the postgres driver")
		}
		err := database.RollbackSteps(ctx, configManager.GetDatabaseConnectionString(), cfg.Database.MigrationsPath, *rollback, logger)
		if err != nil {
			logger.WithError(err).Fatal("Rollback failed")
		}
		return
	}

	app, err := newApp(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer app.Close()

	if *seedUsers != "" {
		if err := app.seed(ctx, *seedUsers); err != nil {
			logger.WithError(err).Fatal("Failed to seed users")
		}
	}

	if *issueToken != "" {
		if _, err := app.store.Users().GetUser(ctx, *issueToken); err != nil {
			logger.WithError(err).Fatal("Cannot issue token")
		}
		token, err := app.auth.IssueToken(*issueToken, *tokenTTL)
		if err != nil {
			logger.WithError(err).Fatal("Cannot issue token")
		}
		fmt.Println(token)
		return
	}

	go app.reminders.Start(ctx, cfg.Workflow.ReminderInterval)

	server := api.NewServer(cfg, api.Dependencies{
		Workflow:    app.workflow,
		Inbox:       app.inbox,
		Reminders:   app.reminders,
		Auth:        app.auth,
		HealthCheck: app.health,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"driver":      cfg.Database.Driver,
		"environment": cfg.Environment,
	}).Info("Starting housing assessment server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// seed upserts the users listed in a JSON array file.
func (a *app) seed(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var users []*domain.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for _, u := range users {
		if u.ID == "" || !u.Role.IsValid() {
			return fmt.Errorf("user %q: id and a valid role are required", u.Username)
		}
		if err := a.saveUser(ctx, u); err != nil {
			return err
		}
	}
	a.logger.WithField("count", len(users)).Info("Seeded users")
	return nil
}

