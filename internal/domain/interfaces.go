package domain

import (
	"context"
	"time"
)

// AssessmentRepository persists assessment aggregates.
type AssessmentRepository interface {
	Create(ctx context.Context, a *Assessment) error
	// Get returns the assessment including soft-deleted ones; callers decide
	// whether a deleted assessment is visible.
	Get(ctx context.Context, id string) (*Assessment, error)
	Update(ctx context.Context, a *Assessment) error
	List(ctx context.Context, filter AssessmentFilter) ([]*Assessment, error)
	// DueForFollowUp returns deferred, non-deleted assessments whose follow-up
	// date equals date.
	DueForFollowUp(ctx context.Context, date time.Time) ([]*Assessment, error)
}

// AuditRecorder appends and reads the immutable audit trail.
type AuditRecorder interface {
	Append(ctx context.Context, event *AuditEvent) error
	// List returns events newest first, optionally filtered by action.
	List(ctx context.Context, assessmentID string, action AuditAction) ([]*AuditEvent, error)
}

// UserDirectory resolves users for authentication and notification fan-out.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	ListByRole(ctx context.Context, roles ...Role) ([]*User, error)
}

// Tx is the unit of work handed to WithinTx callbacks. Writes made through it
// commit or roll back together.
type Tx interface {
	Assessments() AssessmentRepository
	AuditLog() AuditRecorder
}

// Store is the persistence boundary of the workflow.
type Store interface {
	Tx
	Users() UserDirectory
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NotificationInbox is the read side of delivered notifications.
type NotificationInbox interface {
	Notifier
	ListForUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Close() error
}

// ReminderLedger remembers which reminders were already sent so the scan is
// idempotent per assessment per day.
type ReminderLedger interface {
	// MarkSent records the reminder and reports true when it was not already
	// recorded.
	MarkSent(ctx context.Context, assessmentID string, day time.Time) (bool, error)
	// Forget removes the record so the next scan that day tries again.
	Forget(ctx context.Context, assessmentID string, day time.Time) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
