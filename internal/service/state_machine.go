package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// NotificationIntent asks for a message to be delivered either to one user or
// to every user holding one of Roles.
type NotificationIntent struct {
	UserID       string
	Roles        []domain.Role
	AssessmentID string
	Type         domain.NotificationType
	Message      string
}

// Transition is the result of a validated command. It is declarative: the
// caller persists Assessment and Created, appends Audit in the same unit of
// work, and delivers Notify after commit.
type Transition struct {
	Action domain.AuditAction
	From   domain.Status
	// Assessment is the updated copy, or nil when the command does not modify
	// the target (amend).
	Assessment *domain.Assessment
	// Created is a new aggregate produced by the command (create, amend).
	Created *domain.Assessment
	Audit   []*domain.AuditEvent
	Notify  []NotificationIntent
}

// DeferRequest carries the approver's deferral details.
type DeferRequest struct {
	Reason       string `json:"reason"`
	Timeframe    string `json:"timeframe"`
	Actions      string `json:"actions"`
	FollowUpDate string `json:"follow_up_date"`
	Notes        string `json:"notes"`
}

// OverrideRequest carries a manual rating adjustment.
type OverrideRequest struct {
	AdjustedScore domain.Rating `json:"adjusted_score"`
	Justification string        `json:"justification"`
}

const defaultRejectionReason = "No reason provided"

// AssessmentStateMachine validates workflow commands against an assessment
// and produces transitions. It performs no I/O.
type AssessmentStateMachine struct {
	engine       *ScoringEngine
	overrides    *OverrideResolver
	pathways     *ApprovalPathwayResolver
	completeness *CompletenessValidator
	policy       domain.ApprovalPolicy

	now   func() time.Time
	newID func() string
}

// NewAssessmentStateMachine creates a state machine with the given approval policy.
func NewAssessmentStateMachine(engine *ScoringEngine, policy domain.ApprovalPolicy) *AssessmentStateMachine {
	return &AssessmentStateMachine{
		engine:       engine,
		overrides:    NewOverrideResolver(),
		pathways:     NewApprovalPathwayResolver(),
		completeness: NewCompletenessValidator(engine.table),
		policy:       policy,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// WithClock replaces the time source.
func (m *AssessmentStateMachine) WithClock(now func() time.Time) *AssessmentStateMachine {
	m.now = now
	return m
}

// Policy returns the approval policy in force.
func (m *AssessmentStateMachine) Policy() domain.ApprovalPolicy {
	return m.policy
}

// Refresh recomputes the cached ratings, effective rating and final
// recommendation of a from its form data.
func (m *AssessmentStateMachine) Refresh(a *domain.Assessment) {
	a.Ratings = m.engine.Compute(a.FormData)
	a.TenancyRisk = m.overrides.ResolveAssessment(a).Effective
	if rec := domain.FinalRecommendation(a.FormData.String(8, "finalRecommendation")); rec.IsValid() {
		a.FinalRecommendation = rec
	} else {
		a.FinalRecommendation = ""
	}
}

// Resolve returns the override resolution for a after recomputing its ratings.
func (m *AssessmentStateMachine) Resolve(a *domain.Assessment) Resolution {
	c := a.Clone()
	m.Refresh(c)
	return m.overrides.ResolveAssessment(c)
}

// Create starts a new draft with part 1 pre-filled.
func (m *AssessmentStateMachine) Create(actor domain.Actor, applicantName string) (*Transition, error) {
	if !actor.Role.Can(domain.CapCreateAssessment) {
		return nil, domain.NewAuthorizationError("create assessments", actor, "only assessors create assessments")
	}
	applicantName = strings.TrimSpace(applicantName)
	if applicantName == "" {
		return nil, domain.NewValidationError("applicantName", "is required")
	}

	now := m.now()
	fd := domain.FormData{
		domain.PartKey(1): {
			"applicantName":    applicantName,
			"dateOfAssessment": now.Format(domain.DateLayout),
			"assessorName":     actor.FullName,
		},
	}
	for n := 2; n <= domain.PartCount; n++ {
		fd[domain.PartKey(n)] = domain.PartData{}
	}

	a := &domain.Assessment{
		ID:            m.newID(),
		ApplicantName: applicantName,
		AssessorID:    actor.ID,
		Status:        domain.StatusDraft,
		CurrentPart:   1,
		FormData:      fd,
		LastSavedAt:   &now,
		LastSavedPart: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.Refresh(a)

	return &Transition{
		Action:  domain.ActionCreate,
		Created: a,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionCreate, map[string]any{"applicant_name": applicantName}),
		},
	}, nil
}

// SavePart merges data into part n and recomputes ratings.
func (m *AssessmentStateMachine) SavePart(a *domain.Assessment, actor domain.Actor, part int, data domain.PartData) (*Transition, error) {
	const action = "save"
	if err := m.requireOwner(a, actor, domain.CapEditOwn, action); err != nil {
		return nil, err
	}
	if part < 1 || part > domain.PartCount {
		return nil, domain.NewValidationError("part", fmt.Sprintf("must be between 1 and %d", domain.PartCount))
	}
	if err := m.requireUnlocked(a, action); err != nil {
		return nil, err
	}
	if a.Status == domain.StatusRejected {
		return nil, domain.NewStateConflictError(action, a.Status, "rejected assessments cannot be edited")
	}

	now := m.now()
	next := a.Clone()
	next.FormData = a.FormData.Merge(part, data)
	if part == 1 {
		if name := next.FormData.String(1, "applicantName"); name != "" {
			next.ApplicantName = name
		}
	}
	next.LastSavedAt = &now
	next.LastSavedPart = part
	if part > next.CurrentPart {
		next.CurrentPart = part
	}
	next.UpdatedAt = now
	m.Refresh(next)

	return &Transition{
		Action:     domain.ActionSave,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionSave, map[string]any{"part_number": part}),
		},
	}, nil
}

// Submit validates completeness and routes the draft by its determining
// rating. Low ratings are self-approved and locked immediately.
func (m *AssessmentStateMachine) Submit(a *domain.Assessment, actor domain.Actor) (*Transition, error) {
	const action = "submit"
	if err := m.requireOwner(a, actor, domain.CapSubmitOwn, action); err != nil {
		return nil, err
	}
	if a.Status != domain.StatusDraft {
		return nil, domain.NewStateConflictError(action, a.Status, "only drafts can be submitted")
	}
	if err := m.completeness.Validate(a.FormData); err != nil {
		return nil, err
	}

	now := m.now()
	next := a.Clone()
	m.Refresh(next)
	res := m.overrides.ResolveAssessment(next)
	decision := m.pathways.Resolve(res.Determining)

	next.Status = decision.Status
	next.SubmittedAt = &now
	next.UpdatedAt = now
	if decision.SelfApprove {
		next.LockedAt = &now
		next.LockedBy = actor.ID
		next.ApprovedBy = actor.ID
	}

	t := &Transition{
		Action:     domain.ActionSubmit,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionSubmit, map[string]any{
				"new_status":         string(next.Status),
				"pathway":            string(decision.Pathway),
				"determining_rating": string(res.Determining),
				"tenancy_risk":       string(res.Effective),
			}),
		},
	}
	if !decision.SelfApprove {
		t.Notify = append(t.Notify, NotificationIntent{
			Roles:        []domain.Role{decision.RequiredRole},
			AssessmentID: a.ID,
			Type:         domain.NotifySubmission,
			Message: fmt.Sprintf("Assessment for %s requires your approval (%s risk)",
				a.ApplicantName, res.Determining),
		})
	}
	return t, nil
}

// Approve approves a pending assessment and locks it.
func (m *AssessmentStateMachine) Approve(a *domain.Assessment, actor domain.Actor, notes string) (*Transition, error) {
	const action = "approve"
	if err := requireVisible(a); err != nil {
		return nil, err
	}
	if a.HasUnresolvedDeferral() {
		return nil, domain.NewStateConflictError(action, a.Status,
			"the assessment was deferred and must be resubmitted by the assessor before it can be approved")
	}
	if !a.Status.IsPending() {
		return nil, domain.NewStateConflictError(action, a.Status, "only pending assessments can be approved")
	}
	if !m.policy.CanApprove(actor.Role, a.Status) {
		return nil, domain.NewAuthorizationError(action, actor, approvalTierReason(a.Status))
	}

	now := m.now()
	next := a.Clone()
	next.Status = domain.StatusApproved
	next.LockedAt = &now
	next.LockedBy = actor.ID
	next.ApprovedBy = actor.ID
	next.ApprovalNotes = notes
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionApprove,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionApprove, map[string]any{"notes": notes, "from_status": string(a.Status)}),
		},
		Notify: []NotificationIntent{{
			UserID:       a.AssessorID,
			AssessmentID: a.ID,
			Type:         domain.NotifyApproval,
			Message: fmt.Sprintf("Your assessment for %s has been approved by %s",
				a.ApplicantName, actor.FullName),
		}},
	}, nil
}

func approvalTierReason(s domain.Status) string {
	if s == domain.StatusPendingSenior {
		return "senior manager approval required"
	}
	return "manager approval required"
}

// Reject rejects a pending assessment. An empty reason is recorded as
// "No reason provided".
func (m *AssessmentStateMachine) Reject(a *domain.Assessment, actor domain.Actor, notes string) (*Transition, error) {
	const action = "reject"
	if err := m.requirePendingDecision(a, actor, action); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(notes)
	if reason == "" {
		reason = defaultRejectionReason
	}

	now := m.now()
	next := a.Clone()
	next.Status = domain.StatusRejected
	next.RejectionReason = reason
	next.RejectedBy = actor.ID
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionReject,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionReject, map[string]any{"notes": notes}),
		},
		Notify: []NotificationIntent{{
			UserID:       a.AssessorID,
			AssessmentID: a.ID,
			Type:         domain.NotifyRejection,
			Message: fmt.Sprintf("Your assessment for %s has been rejected by %s. Reason: %s",
				a.ApplicantName, actor.FullName, reason),
		}},
	}, nil
}

// Defer puts a pending assessment on hold. Each deferral requires a fresh
// resubmission before approval.
func (m *AssessmentStateMachine) Defer(a *domain.Assessment, actor domain.Actor, req DeferRequest) (*Transition, error) {
	const action = "defer"
	if err := m.requirePendingDecision(a, actor, action); err != nil {
		return nil, err
	}

	verr := &domain.ValidationError{}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		verr.Add("reason", "is required")
	}
	followUp := strings.TrimSpace(req.FollowUpDate)
	if followUp != "" {
		if _, err := domain.ParseDate(followUp); err != nil {
			verr.Add("follow_up_date", "must be a YYYY-MM-DD date")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := m.now()
	next := a.Clone()
	next.Status = domain.StatusDeferred
	next.Deferral = &domain.Deferral{
		Reason:       reason,
		Timeframe:    strings.TrimSpace(req.Timeframe),
		Actions:      strings.TrimSpace(req.Actions),
		FollowUpDate: followUp,
		DeferredBy:   actor.ID,
		DeferredAt:   now,
	}
	next.ResubmittedAt = nil
	next.ResubmissionNotes = ""
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionDefer,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionDefer, map[string]any{
				"reason":         reason,
				"timeframe":      req.Timeframe,
				"actions":        req.Actions,
				"follow_up_date": followUp,
				"notes":          req.Notes,
			}),
		},
		Notify: []NotificationIntent{{
			UserID:       a.AssessorID,
			AssessmentID: a.ID,
			Type:         domain.NotifyDeferral,
			Message: fmt.Sprintf("Your assessment for %s has been deferred by %s. Reason: %s",
				a.ApplicantName, actor.FullName, reason),
		}},
	}, nil
}

// CompleteDeferral returns a deferred assessment to the approval queue
// without assessor action.
func (m *AssessmentStateMachine) CompleteDeferral(a *domain.Assessment, actor domain.Actor, notes string) (*Transition, error) {
	const action = "complete deferral of"
	if err := requireVisible(a); err != nil {
		return nil, err
	}
	if a.Status != domain.StatusDeferred {
		return nil, domain.NewStateConflictError(action, a.Status, "assessment is not deferred")
	}
	if !actor.Role.Can(domain.CapDecide) {
		return nil, domain.NewAuthorizationError(action, actor, "approver role required")
	}

	next := a.Clone()
	m.Refresh(next)
	res := m.overrides.ResolveAssessment(next)
	decision := m.pathways.ResolveQueue(res.Determining)
	next.Status = decision.Status
	next.UpdatedAt = m.now()

	return &Transition{
		Action:     domain.ActionDeferComplete,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionDeferComplete, map[string]any{
				"notes":      notes,
				"new_status": string(next.Status),
			}),
		},
	}, nil
}

// Resubmit answers a deferral and re-enters the approval queue.
func (m *AssessmentStateMachine) Resubmit(a *domain.Assessment, actor domain.Actor, notes string) (*Transition, error) {
	const action = "resubmit"
	if err := m.requireOwner(a, actor, domain.CapResubmitOwn, action); err != nil {
		return nil, err
	}
	if a.Status != domain.StatusDeferred {
		return nil, domain.NewStateConflictError(action, a.Status, "only deferred assessments can be resubmitted")
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, domain.NewValidationError("notes", "describe what was updated")
	}

	now := m.now()
	next := a.Clone()
	m.Refresh(next)
	res := m.overrides.ResolveAssessment(next)
	decision := m.pathways.ResolveQueue(res.Determining)
	next.Status = decision.Status
	next.ResubmittedAt = &now
	next.ResubmissionNotes = notes
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionResubmit,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionResubmit, map[string]any{
				"notes":      notes,
				"new_status": string(next.Status),
			}),
		},
		Notify: []NotificationIntent{{
			Roles:        []domain.Role{decision.RequiredRole},
			AssessmentID: a.ID,
			Type:         domain.NotifySubmission,
			Message: fmt.Sprintf("Assessment for %s has been resubmitted by %s after deferral. Notes: %s",
				a.ApplicantName, actor.FullName, notes),
		}},
	}, nil
}

// Amend creates a new draft from an approved assessment. The original is not
// modified.
func (m *AssessmentStateMachine) Amend(a *domain.Assessment, actor domain.Actor) (*Transition, error) {
	const action = "amend"
	if err := requireVisible(a); err != nil {
		return nil, err
	}
	if !actor.Role.Can(domain.CapAmend) {
		return nil, domain.NewAuthorizationError(action, actor, "approver role required")
	}
	if a.Status != domain.StatusApproved {
		return nil, domain.NewStateConflictError(action, a.Status, "only approved assessments can be amended")
	}

	now := m.now()
	copied := &domain.Assessment{
		ID:            m.newID(),
		ApplicantName: a.ApplicantName,
		AssessorID:    a.AssessorID,
		Status:        domain.StatusDraft,
		CurrentPart:   1,
		FormData:      a.FormData.Clone(),
		AmendedFromID: a.ID,
		LastSavedAt:   &now,
		LastSavedPart: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.Refresh(copied)

	return &Transition{
		Action:  domain.ActionAmend,
		From:    a.Status,
		Created: copied,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionAmend, map[string]any{"new_assessment_id": copied.ID}),
			m.event(copied.ID, actor, domain.ActionCreate, map[string]any{"amended_from": a.ID}),
		},
	}, nil
}

// ApplyOverride attaches or replaces the manual rating. The original score is
// the overall rating as computed now.
func (m *AssessmentStateMachine) ApplyOverride(a *domain.Assessment, actor domain.Actor, req OverrideRequest) (*Transition, error) {
	const action = "override"
	if err := m.requireOverridable(a, actor, action); err != nil {
		return nil, err
	}

	ratings := m.engine.Compute(a.FormData)
	computed := ratings.OverallMatchChallenge()

	verr := &domain.ValidationError{}
	switch {
	case !req.AdjustedScore.IsValid():
		verr.Add("adjusted_score", "must be one of Low, Medium, High")
	case req.AdjustedScore == computed:
		verr.Add("adjusted_score", fmt.Sprintf("must differ from the computed rating (%s)", computed))
	}
	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		verr.Add("justification", "is required for override")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := m.now()
	next := a.Clone()
	next.Ratings = ratings
	next.Override = &domain.Override{
		OriginalScore: next.Ratings.OverallMatchChallenge(),
		AdjustedScore: req.AdjustedScore,
		Justification: justification,
		ActorID:       actor.ID,
		ActorName:     actor.FullName,
		Timestamp:     now,
	}
	m.Refresh(next)
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionOverride,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionOverride, map[string]any{
				"original_score": string(next.Override.OriginalScore),
				"adjusted_score": string(next.Override.AdjustedScore),
				"justification":  justification,
			}),
		},
	}, nil
}

// ClearOverride removes the active override.
func (m *AssessmentStateMachine) ClearOverride(a *domain.Assessment, actor domain.Actor, reason string) (*Transition, error) {
	const action = "clear override on"
	if err := m.requireOverridable(a, actor, action); err != nil {
		return nil, err
	}
	if a.Override == nil {
		return nil, domain.NewStateConflictError(action, a.Status, "no override is active")
	}

	next := a.Clone()
	previous := next.Override
	next.Override = nil
	m.Refresh(next)
	next.UpdatedAt = m.now()

	return &Transition{
		Action:     domain.ActionOverrideCleared,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionOverrideCleared, map[string]any{
				"reason":         reason,
				"adjusted_score": string(previous.AdjustedScore),
			}),
		},
	}, nil
}

// Delete soft-deletes an assessment. Assessors may delete their own drafts;
// senior managers may delete any unlocked assessment with a reason.
func (m *AssessmentStateMachine) Delete(a *domain.Assessment, actor domain.Actor, reason string) (*Transition, error) {
	const action = "delete"
	if err := requireVisible(a); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var notify []NotificationIntent
	switch {
	case actor.Role.Can(domain.CapDeleteAny):
		if err := m.requireUnlocked(a, action); err != nil {
			return nil, err
		}
		if reason == "" {
			return nil, domain.NewValidationError("reason", "deletion reason is required")
		}
		notify = append(notify, NotificationIntent{
			UserID:       a.AssessorID,
			AssessmentID: a.ID,
			Type:         domain.NotifyRejection,
			Message: fmt.Sprintf("Assessment for %s has been deleted by %s. Reason: %s",
				a.ApplicantName, actor.FullName, reason),
		})
	case actor.Role.Can(domain.CapDeleteOwnDraft):
		if a.AssessorID != actor.ID {
			return nil, domain.NewAuthorizationError(action, actor, "access denied")
		}
		if a.Status != domain.StatusDraft {
			return nil, domain.NewStateConflictError(action, a.Status, "only draft assessments can be deleted")
		}
	default:
		return nil, domain.NewAuthorizationError(action, actor, "access denied")
	}

	now := m.now()
	next := a.Clone()
	next.DeletedAt = &now
	next.DeletedBy = actor.ID
	next.DeletedReason = reason
	next.UpdatedAt = now

	return &Transition{
		Action:     domain.ActionDelete,
		From:       a.Status,
		Assessment: next,
		Audit: []*domain.AuditEvent{
			m.event(a.ID, actor, domain.ActionDelete, map[string]any{"reason": reason}),
		},
		Notify: notify,
	}, nil
}

func (m *AssessmentStateMachine) event(assessmentID string, actor domain.Actor, action domain.AuditAction, details map[string]any) *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:           m.newID(),
		AssessmentID: assessmentID,
		ActorID:      actor.ID,
		Action:       action,
		Details:      details,
		CreatedAt:    m.now(),
	}
}

func requireVisible(a *domain.Assessment) error {
	if a.IsDeleted() {
		return domain.NewNotFoundError("assessment", a.ID)
	}
	return nil
}

func (m *AssessmentStateMachine) requireOwner(a *domain.Assessment, actor domain.Actor, c domain.Capability, action string) error {
	if err := requireVisible(a); err != nil {
		return err
	}
	if !actor.Role.Can(c) || a.AssessorID != actor.ID {
		return domain.NewAuthorizationError(action, actor, "only the owning assessor may "+action)
	}
	return nil
}

func (m *AssessmentStateMachine) requireUnlocked(a *domain.Assessment, action string) error {
	if a.IsLocked() {
		return domain.NewStateConflictError(action, a.Status, "assessment is locked (approved)")
	}
	return nil
}

func (m *AssessmentStateMachine) requirePendingDecision(a *domain.Assessment, actor domain.Actor, action string) error {
	if err := requireVisible(a); err != nil {
		return err
	}
	if !a.Status.IsPending() {
		return domain.NewStateConflictError(action, a.Status, "assessment is not pending approval")
	}
	if !actor.Role.Can(domain.CapDecide) {
		return domain.NewAuthorizationError(action, actor, "approver role required")
	}
	return nil
}

func (m *AssessmentStateMachine) requireOverridable(a *domain.Assessment, actor domain.Actor, action string) error {
	if err := requireVisible(a); err != nil {
		return err
	}
	owner := actor.Role.Can(domain.CapOverrideOwn) && a.AssessorID == actor.ID
	if !owner && !actor.Role.Can(domain.CapOverrideAny) {
		return domain.NewAuthorizationError(action, actor, "only the owning assessor or an approver may override")
	}
	if err := m.requireUnlocked(a, action); err != nil {
		return err
	}
	if a.Status == domain.StatusRejected {
		return domain.NewStateConflictError(action, a.Status, "rejected assessments cannot be changed")
	}
	return nil
}
