package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// SQLiteStore implements domain.NotificationInbox using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore creates a new SQLite notification store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, log: logger}, nil
}

// createSchema creates the notifications table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Notify stores n in its recipient's inbox.
func (s *SQLiteStore) Notify(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, assessment_id, type, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.AssessmentID, string(n.Type), n.Message, n.Read, createdAt(n),
	)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"type":            string(n.Type),
	}).Debug("Notification stored")
	return nil
}

// ListForUser returns the newest notifications of userID.
func (s *SQLiteStore) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, assessment_id, type, message, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`,
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
func (s *SQLiteStore) MarkRead(ctx context.Context, userID, notificationID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM notifications WHERE id = ?", notificationID,
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
		"UPDATE notifications SET read = 1 WHERE id = ?", notificationID,
	); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of userID read and returns
// how many changed.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
