// Package repository persists assessments, their audit trail and the user
// directory in PostgreSQL (pgx) or SQLite (modernc).
package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pashuvlogs/home-app/internal/domain"
)

const assessmentColumns = `id, applicant_name, assessor_id, status, current_part,
	form_data, ratings, tenancy_risk, final_recommendation, override, deferral,
	follow_up_date, submitted_at, last_saved_at, last_saved_part,
	locked_at, locked_by, approved_by, approval_notes, rejection_reason, rejected_by,
	resubmitted_at, resubmission_notes, amended_from_id,
	deleted_at, deleted_by, deleted_reason, created_at, updated_at`

const assessmentColumnCount = 29

const auditColumns = `id, assessment_id, actor_id, action, details, created_at`

const userColumns = `id, username, full_name, role`

// scanner is implemented by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(s scanner) (*domain.Assessment, error) {
	a := &domain.Assessment{}
	var (
		status, risk, recommendation string
		formData, ratings            []byte
		override, deferral           []byte
		followUp                     string
	)

	err := s.Scan(
		&a.ID, &a.ApplicantName, &a.AssessorID, &status, &a.CurrentPart,
		&formData, &ratings, &risk, &recommendation, &override, &deferral,
		&followUp, &a.SubmittedAt, &a.LastSavedAt, &a.LastSavedPart,
		&a.LockedAt, &a.LockedBy, &a.ApprovedBy, &a.ApprovalNotes, &a.RejectionReason, &a.RejectedBy,
		&a.ResubmittedAt, &a.ResubmissionNotes, &a.AmendedFromID,
		&a.DeletedAt, &a.DeletedBy, &a.DeletedReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.Status(status)
	a.TenancyRisk = domain.Rating(risk)
	a.FinalRecommendation = domain.FinalRecommendation(recommendation)

	if err := json.Unmarshal(formData, &a.FormData); err != nil {
		return nil, fmt.Errorf("decoding form data of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(ratings, &a.Ratings); err != nil {
		return nil, fmt.Errorf("decoding ratings of %s: %w", a.ID, err)
	}
	if len(override) > 0 {
		a.Override = &domain.Override{}
		if err := json.Unmarshal(override, a.Override); err != nil {
			return nil, fmt.Errorf("decoding override of %s: %w", a.ID, err)
		}
	}
	if len(deferral) > 0 {
		a.Deferral = &domain.Deferral{}
		if err := json.Unmarshal(deferral, a.Deferral); err != nil {
			return nil, fmt.Errorf("decoding deferral of %s: %w", a.ID, err)
		}
	}
	normalizeTimes(a)
	return a, nil
}

// normalizeTimes reports every timestamp in UTC regardless of driver.
func normalizeTimes(a *domain.Assessment) {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	for _, t := range []**time.Time{&a.SubmittedAt, &a.LastSavedAt, &a.LockedAt, &a.ResubmittedAt, &a.DeletedAt} {
		if *t != nil {
			u := (*t).UTC()
			*t = &u
		}
	}
}

// assessmentArgs returns the values for assessmentColumns in order.
func assessmentArgs(a *domain.Assessment) ([]any, error) {
	formData := a.FormData
	if formData == nil {
		formData = domain.FormData{}
	}
	fd, err := json.Marshal(formData)
	if err != nil {
		return nil, fmt.Errorf("encoding form data: %w", err)
	}
	ratings, err := json.Marshal(a.Ratings)
	if err != nil {
		return nil, fmt.Errorf("encoding ratings: %w", err)
	}
	override, err := nullableJSON(a.Override)
	if err != nil {
		return nil, fmt.Errorf("encoding override: %w", err)
	}
	var deferral any
	followUp := ""
	if a.Deferral != nil {
		if deferral, err = nullableJSON(a.Deferral); err != nil {
			return nil, fmt.Errorf("encoding deferral: %w", err)
		}
		followUp = a.Deferral.FollowUpDate
	}

	return []any{
		a.ID, a.ApplicantName, a.AssessorID, string(a.Status), a.CurrentPart,
		string(fd), string(ratings), string(a.TenancyRisk), string(a.FinalRecommendation), override, deferral,
		followUp, a.SubmittedAt, a.LastSavedAt, a.LastSavedPart,
		a.LockedAt, a.LockedBy, a.ApprovedBy, a.ApprovalNotes, a.RejectionReason, a.RejectedBy,
		a.ResubmittedAt, a.ResubmissionNotes, a.AmendedFromID,
		a.DeletedAt, a.DeletedBy, a.DeletedReason, a.CreatedAt, a.UpdatedAt,
	}, nil
}

func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanAudit(s scanner) (*domain.AuditEvent, error) {
	ev := &domain.AuditEvent{}
	var action string
	var details []byte
	if err := s.Scan(&ev.ID, &ev.AssessmentID, &ev.ActorID, &action, &details, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Action = domain.AuditAction(action)
	ev.CreatedAt = ev.CreatedAt.UTC()
	if len(details) > 0 {
		if err := json.Unmarshal(details, &ev.Details); err != nil {
			return nil, fmt.Errorf("decoding audit details of %s: %w", ev.ID, err)
		}
	}
	return ev, nil
}

func auditArgs(ev *domain.AuditEvent) ([]any, error) {
	details := ev.Details
	if details == nil {
		details = map[string]any{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encoding audit details: %w", err)
	}
	return []any{ev.ID, ev.AssessmentID, ev.ActorID, string(ev.Action), string(b), ev.CreatedAt}, nil
}

func scanUser(s scanner) (*domain.User, error) {
	u := &domain.User{}
	var role string
	if err := s.Scan(&u.ID, &u.Username, &u.FullName, &role); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

// query is a dialect-neutral statement using ? placeholders.
type query struct {
	sql  strings.Builder
	args []any
}

func (q *query) add(clause string, args ...any) {
	q.sql.WriteString(clause)
	q.args = append(q.args, args...)
}

// listQuery builds the filtered listing, newest first.
func listQuery(f domain.AssessmentFilter) *query {
	q := &query{}
	q.add("SELECT " + assessmentColumns + " FROM assessments WHERE 1=1")
	if f.AssessorID != "" {
		q.add(" AND assessor_id = ?", f.AssessorID)
	}
	if f.Status != "" {
		q.add(" AND status = ?", string(f.Status))
	}
	if f.Rating != "" {
		q.add(" AND tenancy_risk = ?", string(f.Rating))
	}
	if name := strings.TrimSpace(f.ApplicantName); name != "" {
		q.add(" AND LOWER(applicant_name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	q.add(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		q.add(" LIMIT ?", f.Limit)
		if f.Offset > 0 {
			q.add(" OFFSET ?", f.Offset)
		}
	}
	return q
}

// updateSQL assigns every column except id and binds id last.
var updateSQL = func() string {
	cols := strings.Split(assessmentColumns, ",")
	sets := make([]string, 0, len(cols)-1)
	for _, col := range cols[1:] {
		sets = append(sets, strings.TrimSpace(col)+" = ?")
	}
	return "UPDATE assessments SET " + strings.Join(sets, ", ") + " WHERE id = ?"
}()

// updateArgs reorders assessmentArgs to match updateSQL.
func updateArgs(args []any) []any {
	out := make([]any, 0, len(args))
	out = append(out, args[1:]...)
	return append(out, args[0])
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind rewrites ? placeholders to PostgreSQL's $n form.
func rebind(sql string) string {
	var b strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func notFound(id string) error {
	return domain.NewNotFoundError("assessment", id)
}
