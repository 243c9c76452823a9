package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of an assessment.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingManager Status = "pending_manager"
	StatusPendingSenior  Status = "pending_senior"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusDeferred       Status = "deferred"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingManager, StatusPendingSenior, StatusApproved, StatusRejected, StatusDeferred:
		return true
	default:
		return false
	}
}

// IsPending reports whether the assessment is waiting in an approval queue.
func (s Status) IsPending() bool {
	return s == StatusPendingManager || s == StatusPendingSenior
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// PartData is the free-form content saved for one questionnaire part.
type PartData map[string]any

// FormData holds every saved part keyed "part1".."part8".
type FormData map[string]PartData

// PartKey returns the form data key for a part number.
func PartKey(n int) string {
	return "part" + strconv.Itoa(n)
}

// Part returns the saved data for part n, or nil when nothing was saved.
func (f FormData) Part(n int) PartData {
	if f == nil {
		return nil
	}
	return f[PartKey(n)]
}

// Selection returns the option chosen for a scored category, or "" when the
// category is unanswered or holds a non-string value.
func (f FormData) Selection(c Category) Option {
	part := f.Part(c.Section().Part())
	if part == nil {
		return ""
	}
	v, ok := part[string(c)].(string)
	if !ok {
		return ""
	}
	return Option(strings.TrimSpace(v))
}

// String returns the trimmed string value of a field in part n.
func (f FormData) String(n int, field string) string {
	part := f.Part(n)
	if part == nil {
		return ""
	}
	v, ok := part[field].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Merge shallow-merges data into part n, creating the part when absent.
func (f FormData) Merge(n int, data PartData) FormData {
	out := f.Clone()
	if out == nil {
		out = FormData{}
	}
	part := out[PartKey(n)]
	if part == nil {
		part = PartData{}
	}
	for k, v := range data {
		part[k] = cloneValue(v)
	}
	out[PartKey(n)] = part
	return out
}

// Clone returns a deep copy of the form data.
func (f FormData) Clone() FormData {
	if f == nil {
		return nil
	}
	out := make(FormData, len(f))
	for key, part := range f {
		out[key] = part.Clone()
	}
	return out
}

// Clone returns a deep copy of the part data.
func (p PartData) Clone() PartData {
	if p == nil {
		return nil
	}
	out := make(PartData, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case PartData:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// ScoreBreakdown is the per-category contribution to one section total.
type ScoreBreakdown struct {
	CategoryScores map[Category]int `json:"category_scores"`
	Total          int              `json:"total"`
}

// AssessmentRatings are the values derived from the form data. They are a
// cache of the last computation and are always recomputable from FormData.
type AssessmentRatings struct {
	HousingNeedScore        int    `json:"housing_need_score"`
	HousingNeedRating       Rating `json:"housing_need_rating"`
	TenancyChallengeScore   int    `json:"tenancy_challenge_score"`
	HealthWellbeingScore    int    `json:"health_wellbeing_score"`
	GrossChallengeScore     int    `json:"gross_challenge_score"`
	GrossChallengeRating    Rating `json:"gross_challenge_rating"`
	MitigationScore         int    `json:"mitigation_score"`
	ResidualScore           int    `json:"residual_score"`
	ResidualChallengeRating Rating `json:"residual_challenge_rating"`
}

// OverallMatchChallenge is the synthesized overall rating. It is always the
// residual challenge rating and is never stored independently.
func (r AssessmentRatings) OverallMatchChallenge() Rating {
	return r.ResidualChallengeRating
}

// MarshalJSON includes the derived overall rating in the encoded form.
func (r AssessmentRatings) MarshalJSON() ([]byte, error) {
	type plain AssessmentRatings
	return json.Marshal(struct {
		plain
		OverallMatchChallenge Rating `json:"overall_match_challenge"`
	}{plain(r), r.OverallMatchChallenge()})
}

// Override is a justified manual replacement for the computed rating.
type Override struct {
	OriginalScore Rating    `json:"original_score"`
	AdjustedScore Rating    `json:"adjusted_score"`
	Justification string    `json:"justification"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Deferral records why an approver put an assessment on hold.
type Deferral struct {
	Reason       string    `json:"reason"`
	Timeframe    string    `json:"timeframe,omitempty"`
	Actions      string    `json:"actions,omitempty"`
	FollowUpDate string    `json:"follow_up_date,omitempty"` // YYYY-MM-DD
	DeferredBy   string    `json:"deferred_by"`
	DeferredAt   time.Time `json:"deferred_at"`
}

// DateLayout is the calendar date format used for follow-up and assessment dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Assessment is the aggregate root of the workflow. Ratings and override are
// owned by the assessment and change only through workflow commands.
type Assessment struct {
	ID                  string              `json:"id"`
	ApplicantName       string              `json:"applicant_name"`
	AssessorID          string              `json:"assessor_id"`
	Status              Status              `json:"status"`
	CurrentPart         int                 `json:"current_part"`
	FormData            FormData            `json:"form_data"`
	Ratings             AssessmentRatings   `json:"ratings"`
	// TenancyRisk caches the effective rating: the override value when one is
	// active, otherwise the computed overall rating.
	TenancyRisk         Rating              `json:"tenancy_risk"`
	FinalRecommendation FinalRecommendation `json:"final_recommendation,omitempty"`
	Override            *Override           `json:"override,omitempty"`
	Deferral            *Deferral           `json:"deferral,omitempty"`

	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	LastSavedAt       *time.Time `json:"last_saved_at,omitempty"`
	LastSavedPart     int        `json:"last_saved_part,omitempty"`
	LockedAt          *time.Time `json:"locked_at,omitempty"`
	LockedBy          string     `json:"locked_by,omitempty"`
	ApprovedBy        string     `json:"approved_by,omitempty"`
	ApprovalNotes     string     `json:"approval_notes,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	RejectedBy        string     `json:"rejected_by,omitempty"`
	ResubmittedAt     *time.Time `json:"resubmitted_at,omitempty"`
	ResubmissionNotes string     `json:"resubmission_notes,omitempty"`
	AmendedFromID     string     `json:"amended_from_id,omitempty"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         string     `json:"deleted_by,omitempty"`
	DeletedReason     string     `json:"deleted_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLocked reports whether the assessment has been approved and frozen.
func (a *Assessment) IsLocked() bool {
	return a.LockedAt != nil
}

// IsDeleted reports whether the assessment was soft-deleted.
func (a *Assessment) IsDeleted() bool {
	return a.DeletedAt != nil
}

// HasUnresolvedDeferral reports whether a deferral is on record that the
// assessor has not yet answered with a resubmission.
func (a *Assessment) HasUnresolvedDeferral() bool {
	return a.Deferral != nil && a.Deferral.Reason != "" && a.ResubmittedAt == nil
}

// Clone returns a deep copy so transitions never mutate the caller's value.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	out.FormData = a.FormData.Clone()
	if a.Override != nil {
		o := *a.Override
		out.Override = &o
	}
	if a.Deferral != nil {
		d := *a.Deferral
		out.Deferral = &d
	}
	out.SubmittedAt = cloneTime(a.SubmittedAt)
	out.LastSavedAt = cloneTime(a.LastSavedAt)
	out.LockedAt = cloneTime(a.LockedAt)
	out.ResubmittedAt = cloneTime(a.ResubmittedAt)
	out.DeletedAt = cloneTime(a.DeletedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LogFields returns structured logging fields for the assessment.
func (a *Assessment) LogFields() map[string]any {
	return map[string]any{
		"assessment_id": a.ID,
		"assessor_id":   a.AssessorID,
		"status":        string(a.Status),
		"locked":        a.IsLocked(),
	}
}

// AssessmentFilter narrows List queries.
type AssessmentFilter struct {
	// AssessorID restricts results to one owner when set.
	AssessorID string
	Status     Status
	// Rating matches the effective rating.
	Rating        Rating
	ApplicantName string // case-insensitive substring
	Limit         int
	Offset        int
}
