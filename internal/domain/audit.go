package domain

import "time"

// AuditAction names a recorded workflow action.
type AuditAction string

const (
	ActionCreate          AuditAction = "create"
	ActionSave            AuditAction = "save"
	ActionSubmit          AuditAction = "submit"
	ActionApprove         AuditAction = "approve"
	ActionReject          AuditAction = "reject"
	ActionDefer           AuditAction = "defer"
	ActionDeferComplete   AuditAction = "defer_complete"
	ActionResubmit        AuditAction = "resubmit"
	ActionAmend           AuditAction = "amend"
	ActionOverride        AuditAction = "override"
	ActionOverrideCleared AuditAction = "override_cleared"
	ActionDelete          AuditAction = "delete"
)

// AuditEvent is an immutable record of one action on an assessment.
type AuditEvent struct {
	ID           string         `json:"id"`
	AssessmentID string         `json:"assessment_id"`
	ActorID      string         `json:"actor_id"`
	Action       AuditAction    `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NotificationType classifies inbox messages.
type NotificationType string

const (
	NotifySubmission NotificationType = "submission"
	NotifyApproval   NotificationType = "approval"
	NotifyRejection  NotificationType = "rejection"
	NotifyDeferral   NotificationType = "deferral"
	NotifyFollowUp   NotificationType = "followup"
)

// Notification is a message delivered to one user's inbox.
type Notification struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	AssessmentID string           `json:"assessment_id,omitempty"`
	Type         NotificationType `json:"type"`
	Message      string           `json:"message"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"created_at"`
}
