package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements domain.Store on a pgx connection pool. The schema
// is created by the migrations under migrations/.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL assessment store
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logger}
}

// Assessments returns the repository outside any transaction.
func (s *PostgresStore) Assessments() domain.AssessmentRepository {
	return &pgAssessments{q: s.pool, log: s.log}
}

// AuditLog returns the audit recorder outside any transaction.
func (s *PostgresStore) AuditLog() domain.AuditRecorder {
	return &pgAudit{q: s.pool}
}

// Users returns the user directory.
func (s *PostgresStore) Users() domain.UserDirectory {
	return &pgUsers{q: s.pool}
}

// WithinTx runs fn in a transaction. Assessments read through the
// transaction are row-locked until it ends so concurrent commands on the
// same assessment serialize.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, log: s.log})
	})
}

// SaveUser inserts or updates a user.
func (s *PostgresStore) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, full_name, role) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role`,
		u.ID, u.Username, u.FullName, string(u.Role))
	if err != nil {
		return fmt.Errorf("saving user %s: %w", u.ID, err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

type pgTx struct {
	tx  pgx.Tx
	log *logrus.Logger
}

func (t *pgTx) Assessments() domain.AssessmentRepository {
	return &pgAssessments{q: t.tx, log: t.log, forUpdate: true}
}

func (t *pgTx) AuditLog() domain.AuditRecorder {
	return &pgAudit{q: t.tx}
}

type pgAssessments struct {
	q         pgQuerier
	log       *logrus.Logger
	forUpdate bool
}

func (r *pgAssessments) Create(ctx context.Context, a *domain.Assessment) error {
	args, err := assessmentArgs(a)
	if err != nil {
		return err
	}
	sql := rebind("INSERT INTO assessments (" + assessmentColumns + ") VALUES (" + placeholders(assessmentColumnCount) + ")")
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}
	return nil
}

func (r *pgAssessments) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	sql := "SELECT " + assessmentColumns + " FROM assessments WHERE id = $1"
	if r.forUpdate {
		sql += " FOR UPDATE"
	}
	a, err := scanAssessment(r.q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("getting assessment %s: %w", id, err)
	}
	return a, nil
}

func (r *pgAssessments) Update(ctx context.Context, a *domain.Assessment) error {
	args, err := assessmentArgs(a)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, rebind(updateSQL), updateArgs(args)...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to update assessment")
		return fmt.Errorf("updating assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(a.ID)
	}
	return nil
}

func (r *pgAssessments) List(ctx context.Context, f domain.AssessmentFilter) ([]*domain.Assessment, error) {
	q := listQuery(f)
	rows, err := r.q.Query(ctx, rebind(q.sql.String()), q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()
	return collectAssessments(rows)
}

func (r *pgAssessments) DueForFollowUp(ctx context.Context, date time.Time) ([]*domain.Assessment, error) {
	rows, err := r.q.Query(ctx,
		"SELECT "+assessmentColumns+` FROM assessments
		WHERE status = $1 AND deleted_at IS NULL AND follow_up_date = $2
		ORDER BY id`,
		string(domain.StatusDeferred), date.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("finding assessments due for follow-up: %w", err)
	}
	defer rows.Close()
	return collectAssessments(rows)
}

func collectAssessments(rows pgx.Rows) ([]*domain.Assessment, error) {
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

type pgAudit struct {
	q pgQuerier
}

func (r *pgAudit) Append(ctx context.Context, ev *domain.AuditEvent) error {
	args, err := auditArgs(ev)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx,
		"INSERT INTO audit_logs ("+auditColumns+") VALUES ($1, $2, $3, $4, $5, $6)", args...)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (r *pgAudit) List(ctx context.Context, assessmentID string, action domain.AuditAction) ([]*domain.AuditEvent, error) {
	sql := "SELECT " + auditColumns + " FROM audit_logs WHERE assessment_id = $1"
	args := []any{assessmentID}
	if action != "" {
		sql += " AND action = $2"
		args = append(args, string(action))
	}
	sql += " ORDER BY seq DESC"

	rows, err := r.q.Query(ctx, sql, args...)
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

type pgUsers struct {
	q pgQuerier
}

func (r *pgUsers) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

func (r *pgUsers) ListByRole(ctx context.Context, roles ...domain.Role) ([]*domain.User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.q.Query(ctx, "SELECT "+userColumns+" FROM users WHERE role = ANY($1) ORDER BY id", names)
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
