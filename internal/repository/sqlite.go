package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements domain.Store on a single SQLite file, for
// single-node deployments and local development.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore creates a new SQLite assessment store.
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
	// One connection serializes writers, which SQLite requires anyway, and
	// keeps the per-connection pragmas below in force.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite assessment store opened")
	return &SQLiteStore{db: db, dbPath: dbPath, log: logger}, nil
}

// createSchema mirrors migrations/000001_init.up.sql in SQLite types.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('assessor', 'manager', 'senior_manager')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		applicant_name TEXT NOT NULL,
		assessor_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL,
		current_part INTEGER NOT NULL DEFAULT 1,
		form_data TEXT NOT NULL DEFAULT '{}',
		ratings TEXT NOT NULL DEFAULT '{}',
		tenancy_risk TEXT NOT NULL DEFAULT 'Low',
		final_recommendation TEXT NOT NULL DEFAULT '',
		override TEXT,
		deferral TEXT,
		follow_up_date TEXT NOT NULL DEFAULT '',
		submitted_at DATETIME,
		last_saved_at DATETIME,
		last_saved_part INTEGER NOT NULL DEFAULT 0,
		locked_at DATETIME,
		locked_by TEXT NOT NULL DEFAULT '',
		approved_by TEXT NOT NULL DEFAULT '',
		approval_notes TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		rejected_by TEXT NOT NULL DEFAULT '',
		resubmitted_at DATETIME,
		resubmission_notes TEXT NOT NULL DEFAULT '',
		amended_from_id TEXT NOT NULL DEFAULT '',
		deleted_at DATETIME,
		deleted_by TEXT NOT NULL DEFAULT '',
		deleted_reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_assessor ON assessments(assessor_id);
	CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
	CREATE INDEX IF NOT EXISTS idx_assessments_follow_up ON assessments(follow_up_date);

	CREATE TABLE IF NOT EXISTS audit_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		assessment_id TEXT NOT NULL REFERENCES assessments(id),
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_assessment ON audit_logs(assessment_id, seq);
	`

	_, err := db.Exec(schema)
	return err
}

// Assessments returns the repository outside any transaction.
func (s *SQLiteStore) Assessments() domain.AssessmentRepository {
	return &sqlAssessments{q: s.db, log: s.log}
}

// AuditLog returns the audit recorder outside any transaction.
func (s *SQLiteStore) AuditLog() domain.AuditRecorder {
	return &sqlAudit{q: s.db}
}

// Users returns the user directory.
func (s *SQLiteStore) Users() domain.UserDirectory {
	return &sqlUsers{q: s.db}
}

// WithinTx runs fn in a transaction, committing only when fn succeeds.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&sqlTx{tx: tx, log: s.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveUser inserts or updates a user.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, role) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			role = excluded.role`,
		u.ID, u.Username, u.FullName, string(u.Role))
	if err != nil {
		return fmt.Errorf("saving user %s: %w", u.ID, err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx  *sql.Tx
	log *logrus.Logger
}

func (t *sqlTx) Assessments() domain.AssessmentRepository {
	return &sqlAssessments{q: t.tx, log: t.log}
}

func (t *sqlTx) AuditLog() domain.AuditRecorder {
	return &sqlAudit{q: t.tx}
}

type sqlAssessments struct {
	q   sqlQuerier
	log *logrus.Logger
}

func (r *sqlAssessments) Create(ctx context.Context, a *domain.Assessment) error {
	args, err := assessmentArgs(a)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		"INSERT INTO assessments ("+assessmentColumns+") VALUES ("+placeholders(assessmentColumnCount)+")", args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}
	return nil
}

func (r *sqlAssessments) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	a, err := scanAssessment(r.q.QueryRowContext(ctx,
		"SELECT "+assessmentColumns+" FROM assessments WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("getting assessment %s: %w", id, err)
	}
	return a, nil
}

func (r *sqlAssessments) Update(ctx context.Context, a *domain.Assessment) error {
	args, err := assessmentArgs(a)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, updateSQL, updateArgs(args)...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to update assessment")
		return fmt.Errorf("updating assessment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(a.ID)
	}
	return nil
}

func (r *sqlAssessments) List(ctx context.Context, f domain.AssessmentFilter) ([]*domain.Assessment, error) {
	q := listQuery(f)
	rows, err := r.q.QueryContext(ctx, q.sql.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()
	return collectSQLAssessments(rows)
}

func (r *sqlAssessments) DueForFollowUp(ctx context.Context, date time.Time) ([]*domain.Assessment, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+assessmentColumns+` FROM assessments
		WHERE status = ? AND deleted_at IS NULL AND follow_up_date = ?
		ORDER BY id`,
		string(domain.StatusDeferred), date.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("finding assessments due for follow-up: %w", err)
	}
	defer rows.Close()
	return collectSQLAssessments(rows)
}

func collectSQLAssessments(rows *sql.Rows) ([]*domain.Assessment, error) {
	var out []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessments: %w", err)
	}
	return out, nil
}

type sqlAudit struct {
	q sqlQuerier
}

func (r *sqlAudit) Append(ctx context.Context, ev *domain.AuditEvent) error {
	args, err := auditArgs(ev)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		"INSERT INTO audit_logs ("+auditColumns+") VALUES (?, ?, ?, ?, ?, ?)", args...)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (r *sqlAudit) List(ctx context.Context, assessmentID string, action domain.AuditAction) ([]*domain.AuditEvent, error) {
	query := "SELECT " + auditColumns + " FROM audit_logs WHERE assessment_id = ?"
	args := []any{assessmentID}
	if action != "" {
		query += " AND action = ?"
		args = append(args, string(action))
	}
	query += " ORDER BY seq DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEvent
	for rows.Next() {
		ev, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type sqlUsers struct {
	q sqlQuerier
}

func (r *sqlUsers) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

func (r *sqlUsers) ListByRole(ctx context.Context, roles ...domain.Role) ([]*domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	args := make([]any, len(roles))
	for i, role := range roles {
		args[i] = string(role)
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role IN ("+placeholders(len(roles))+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("listing users by role: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
