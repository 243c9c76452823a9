package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// PostgresStore implements domain.NotificationInbox using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL notification store.
// It expects the notifications table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB, logger *logrus.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, log: logger}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL notification store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Notify stores n in its recipient's inbox.
func (s *PostgresStore) Notify(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, assessment_id, type, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.AssessmentID, string(n.Type), n.Message, n.Read, createdAt(n),
	)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"assessment_id":   n.AssessmentID,
		"type":            string(n.Type),
	}).Debug("Notification stored")
	return nil
}

// ListForUser returns the newest notifications of userID.
func (s *PostgresStore) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, assessment_id, type, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead marks one notification read. Only its recipient may do so.
func (s *PostgresStore) MarkRead(ctx context.Context, userID, notificationID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM notifications WHERE id = $1", notificationID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("notification", notificationID)
	}
	if err != nil {
		return fmt.Errorf("failed to get notification: %w", err)
	}
	if owner != userID {
		return notOwner(userID)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1", notificationID,
	); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of userID read and returns
// how many changed.
func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated notifications: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
