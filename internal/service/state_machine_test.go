package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashuvlogs/home-app/internal/domain"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, domain.CodeOf(err), "unexpected error: %v", err)
}

func TestStateMachine_Create(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})

	tr, err := m.Create(assessor, "  Jane Doe ")
	require.NoError(t, err)

	a := tr.Created
	assert.Equal(t, domain.StatusDraft, a.Status)
	assert.Equal(t, "Jane Doe", a.ApplicantName)
	assert.Equal(t, assessor.ID, a.AssessorID)
	assert.Equal(t, "2026-10-15", a.FormData.String(1, "dateOfAssessment"))
	assert.Equal(t, assessor.FullName, a.FormData.String(1, "assessorName"))
	assert.Len(t, a.FormData, domain.PartCount)
	assert.True(t, a.CreatedAt.Equal(clock.t))
	require.Len(t, tr.Audit, 1)
	assert.Equal(t, domain.ActionCreate, tr.Audit[0].Action)

	_, err = m.Create(manager, "Jane")
	requireCode(t, err, domain.CodeAuthorization)

	_, err = m.Create(assessor, " ")
	requireCode(t, err, domain.CodeValidation)
}

func TestStateMachine_SavePart(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})
	a := draftFor(m, domain.FormData{"part1": {"applicantName": "Jane Doe"}})
	a.CurrentPart = 2

	tr, err := m.SavePart(a, assessor, 2, domain.PartData{
		"roughSleepingDuration": "long_term_over_12m",
		"currentHousingStatus":  "couch_surfing",
	})
	require.NoError(t, err)

	next := tr.Assessment
	assert.Equal(t, domain.RatingHigh, next.Ratings.HousingNeedRating)
	assert.Equal(t, 2, next.LastSavedPart)
	assert.Equal(t, 2, next.CurrentPart)
	assert.Nil(t, a.FormData.Part(2), "original must not be mutated")
	assert.Equal(t, domain.ActionSave, tr.Audit[0].Action)
	assert.Equal(t, 2, tr.Audit[0].Details["part_number"])

	t.Run("non-owner", func(t *testing.T) {
		_, err := m.SavePart(a, otherAssessor, 2, domain.PartData{})
		requireCode(t, err, domain.CodeAuthorization)
		_, err = m.SavePart(a, manager, 2, domain.PartData{})
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("invalid part", func(t *testing.T) {
		_, err := m.SavePart(a, assessor, 9, domain.PartData{})
		requireCode(t, err, domain.CodeValidation)
	})

	t.Run("rejected", func(t *testing.T) {
		r := a.Clone()
		r.Status = domain.StatusRejected
		_, err := m.SavePart(r, assessor, 2, domain.PartData{})
		requireCode(t, err, domain.CodeStateConflict)
	})
}

func TestStateMachine_Submit(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})

	t.Run("low is self-approved and locked", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingLow))
		tr, err := m.Submit(a, assessor)
		require.NoError(t, err)

		next := tr.Assessment
		assert.Equal(t, domain.StatusApproved, next.Status)
		require.NotNil(t, next.LockedAt)
		assert.True(t, next.LockedAt.Equal(clock.t))
		assert.Equal(t, assessor.ID, next.LockedBy)
		assert.Empty(t, tr.Notify)
		assert.Equal(t, "frontline", tr.Audit[0].Details["pathway"])
	})

	t.Run("medium goes to managers", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingMedium))
		tr, err := m.Submit(a, assessor)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPendingManager, tr.Assessment.Status)
		assert.Nil(t, tr.Assessment.LockedAt)
		require.Len(t, tr.Notify, 1)
		assert.Equal(t, []domain.Role{domain.RoleManager}, tr.Notify[0].Roles)
		assert.Equal(t, "Assessment for Jane Doe requires your approval (Medium risk)", tr.Notify[0].Message)
	})

	t.Run("high goes to senior managers", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingHigh))
		tr, err := m.Submit(a, assessor)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingSenior, tr.Assessment.Status)
		assert.Equal(t, []domain.Role{domain.RoleSeniorManager}, tr.Notify[0].Roles)
	})

	t.Run("override lowering High still routes to senior", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingHigh))
		a.Override = &domain.Override{OriginalScore: domain.RatingHigh, AdjustedScore: domain.RatingLow, Justification: "j"}
		tr, err := m.Submit(a, assessor)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingSenior, tr.Assessment.Status)
		assert.Equal(t, domain.RatingLow, tr.Assessment.TenancyRisk)
	})

	t.Run("override raising Low needs approval", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingLow))
		a.Override = &domain.Override{OriginalScore: domain.RatingLow, AdjustedScore: domain.RatingMedium, Justification: "j"}
		tr, err := m.Submit(a, assessor)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingManager, tr.Assessment.Status)
	})

	t.Run("incomplete form reports every problem", func(t *testing.T) {
		fd := completeForm(domain.RatingLow)
		delete(fd, "part8")
		fd["part2"] = domain.PartData{}
		_, err := m.Submit(draftFor(m, fd), assessor)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 3)
	})

	t.Run("only drafts", func(t *testing.T) {
		a := draftFor(m, completeForm(domain.RatingMedium))
		a.Status = domain.StatusPendingManager
		_, err := m.Submit(a, assessor)
		requireCode(t, err, domain.CodeStateConflict)
	})

	t.Run("only the owner", func(t *testing.T) {
		_, err := m.Submit(draftFor(m, completeForm(domain.RatingLow)), otherAssessor)
		requireCode(t, err, domain.CodeAuthorization)
	})
}

func pending(m *AssessmentStateMachine, rating domain.Rating) *domain.Assessment {
	a := draftFor(m, completeForm(rating))
	tr, err := m.Submit(a, assessor)
	if err != nil {
		panic(err)
	}
	return tr.Assessment
}

func TestStateMachine_Approve(t *testing.T) {
	t.Run("manager approves manager tier and locks", func(t *testing.T) {
		m, clock := newTestMachine(domain.ApprovalPolicy{})
		tr, err := m.Approve(pending(m, domain.RatingMedium), manager, "looks good")
		require.NoError(t, err)

		next := tr.Assessment
		assert.Equal(t, domain.StatusApproved, next.Status)
		assert.True(t, next.LockedAt.Equal(clock.t))
		assert.Equal(t, manager.ID, next.LockedBy)
		require.Len(t, tr.Notify, 1)
		assert.Equal(t, assessor.ID, tr.Notify[0].UserID)
		assert.Equal(t, "Your assessment for Jane Doe has been approved by Mia Manager", tr.Notify[0].Message)
	})

	t.Run("manager cannot approve senior tier", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{})
		_, err := m.Approve(pending(m, domain.RatingHigh), manager, "")
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("senior cannot skip level by default", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{})
		_, err := m.Approve(pending(m, domain.RatingMedium), senior, "")
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("senior may skip level when enabled", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{AllowSeniorSkipLevel: true})
		tr, err := m.Approve(pending(m, domain.RatingMedium), senior, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, tr.Assessment.Status)
	})

	t.Run("assessor cannot approve", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{})
		_, err := m.Approve(pending(m, domain.RatingMedium), assessor, "")
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("non-pending is a conflict", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{})
		_, err := m.Approve(draftFor(m, completeForm(domain.RatingMedium)), manager, "")
		requireCode(t, err, domain.CodeStateConflict)
	})

	t.Run("unresolved deferral blocks every role", func(t *testing.T) {
		m, _ := newTestMachine(domain.ApprovalPolicy{AllowSeniorSkipLevel: true})
		a := pending(m, domain.RatingMedium)
		a.Deferral = &domain.Deferral{Reason: "missing references"}

		for _, actor := range []domain.Actor{assessor, manager, senior} {
			_, err := m.Approve(a, actor, "")
			requireCode(t, err, domain.CodeStateConflict)
		}
	})
}

func TestStateMachine_RejectAndDefer(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})

	t.Run("reject defaults the reason", func(t *testing.T) {
		tr, err := m.Reject(pending(m, domain.RatingHigh), manager, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, tr.Assessment.Status)
		assert.Equal(t, "No reason provided", tr.Assessment.RejectionReason)
		assert.Equal(t, manager.ID, tr.Assessment.RejectedBy)
		assert.Contains(t, tr.Notify[0].Message, "Reason: No reason provided")
	})

	t.Run("reject requires pending", func(t *testing.T) {
		_, err := m.Reject(draftFor(m, completeForm(domain.RatingHigh)), manager, "no")
		requireCode(t, err, domain.CodeStateConflict)
	})

	t.Run("defer records details", func(t *testing.T) {
		tr, err := m.Defer(pending(m, domain.RatingMedium), manager, DeferRequest{
			Reason: "Awaiting references", Timeframe: "2 weeks", Actions: "Call landlord", FollowUpDate: "2026-10-29",
		})
		require.NoError(t, err)

		next := tr.Assessment
		assert.Equal(t, domain.StatusDeferred, next.Status)
		require.NotNil(t, next.Deferral)
		assert.Equal(t, "2026-10-29", next.Deferral.FollowUpDate)
		assert.Equal(t, manager.ID, next.Deferral.DeferredBy)
		assert.True(t, next.Deferral.DeferredAt.Equal(clock.t))
		assert.True(t, next.HasUnresolvedDeferral())
		assert.Equal(t, domain.NotifyDeferral, tr.Notify[0].Type)
	})

	t.Run("defer validates reason and date together", func(t *testing.T) {
		_, err := m.Defer(pending(m, domain.RatingMedium), manager, DeferRequest{FollowUpDate: "next week"})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 2)
	})

	t.Run("assessor cannot defer", func(t *testing.T) {
		_, err := m.Defer(pending(m, domain.RatingMedium), assessor, DeferRequest{Reason: "r"})
		requireCode(t, err, domain.CodeAuthorization)
	})
}

func deferred(t *testing.T, m *AssessmentStateMachine, rating domain.Rating) *domain.Assessment {
	t.Helper()
	tr, err := m.Defer(pending(m, rating), manager, DeferRequest{Reason: "Awaiting references"})
	require.NoError(t, err)
	return tr.Assessment
}

func TestStateMachine_ResubmitThenApprove(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})
	d := deferred(t, m, domain.RatingMedium)

	_, err := m.Resubmit(d, assessor, "")
	requireCode(t, err, domain.CodeValidation)

	_, err = m.Resubmit(d, otherAssessor, "updated")
	requireCode(t, err, domain.CodeAuthorization)

	tr, err := m.Resubmit(d, assessor, "References received")
	require.NoError(t, err)
	next := tr.Assessment
	assert.Equal(t, domain.StatusPendingManager, next.Status)
	assert.True(t, next.ResubmittedAt.Equal(clock.t))
	assert.Equal(t, "References received", next.ResubmissionNotes)
	assert.False(t, next.HasUnresolvedDeferral())
	assert.Equal(t, []domain.Role{domain.RoleManager}, tr.Notify[0].Roles)

	approved, err := m.Approve(next, manager, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Assessment.Status)

	_, err = m.Resubmit(next, assessor, "again")
	requireCode(t, err, domain.CodeStateConflict)
}

func TestStateMachine_ResubmitLowRoutesToManager(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})
	// A Low assessment only reaches pending through a raising override.
	a := draftFor(m, completeForm(domain.RatingLow))
	a.Override = &domain.Override{OriginalScore: domain.RatingLow, AdjustedScore: domain.RatingMedium, Justification: "j"}
	submitted, err := m.Submit(a, assessor)
	require.NoError(t, err)
	d, err := m.Defer(submitted.Assessment, manager, DeferRequest{Reason: "r"})
	require.NoError(t, err)
	d.Assessment.Override = nil

	tr, err := m.Resubmit(d.Assessment, assessor, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingManager, tr.Assessment.Status)
}

func TestStateMachine_CompleteDeferral(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})
	d := deferred(t, m, domain.RatingHigh)

	_, err := m.CompleteDeferral(d, assessor, "")
	requireCode(t, err, domain.CodeAuthorization)

	tr, err := m.CompleteDeferral(d, manager, "follow-up done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSenior, tr.Assessment.Status)
	assert.Empty(t, tr.Notify)

	// The deferral is still unanswered by the assessor.
	_, err = m.Approve(tr.Assessment, senior, "")
	requireCode(t, err, domain.CodeStateConflict)

	_, err = m.CompleteDeferral(tr.Assessment, manager, "")
	requireCode(t, err, domain.CodeStateConflict)
}

func TestStateMachine_LockedAfterApproval(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})
	tr, err := m.Approve(pending(m, domain.RatingMedium), manager, "")
	require.NoError(t, err)
	approved := tr.Assessment

	_, err = m.SavePart(approved, assessor, 6, domain.PartData{"notes": "x"})
	requireCode(t, err, domain.CodeStateConflict)

	_, err = m.ApplyOverride(approved, manager, OverrideRequest{AdjustedScore: domain.RatingLow, Justification: "j"})
	requireCode(t, err, domain.CodeStateConflict)

	_, err = m.Delete(approved, senior, "duplicate")
	requireCode(t, err, domain.CodeStateConflict)
}

func TestStateMachine_Amend(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})

	_, err := m.Amend(pending(m, domain.RatingMedium), manager)
	requireCode(t, err, domain.CodeStateConflict)

	tr, err := m.Approve(pending(m, domain.RatingMedium), manager, "")
	require.NoError(t, err)
	approved := tr.Assessment
	approved.Override = &domain.Override{OriginalScore: domain.RatingMedium, AdjustedScore: domain.RatingLow, Justification: "j"}
	snapshot := approved.Clone()

	_, err = m.Amend(approved, assessor)
	requireCode(t, err, domain.CodeAuthorization)

	amended, err := m.Amend(approved, senior)
	require.NoError(t, err)
	assert.Nil(t, amended.Assessment, "original is not rewritten")
	assert.Equal(t, snapshot, approved)

	c := amended.Created
	assert.NotEqual(t, approved.ID, c.ID)
	assert.Equal(t, domain.StatusDraft, c.Status)
	assert.Equal(t, approved.ID, c.AmendedFromID)
	assert.Equal(t, approved.AssessorID, c.AssessorID)
	assert.Nil(t, c.LockedAt)
	assert.Nil(t, c.Override)
	assert.Equal(t, domain.RatingMedium, c.TenancyRisk)

	c.FormData["part3"]["rent"] = "no_concerns"
	assert.Equal(t, "arrears_history", approved.FormData["part3"]["rent"])

	require.Len(t, amended.Audit, 2)
	assert.Equal(t, approved.ID, amended.Audit[0].AssessmentID)
	assert.Equal(t, domain.ActionAmend, amended.Audit[0].Action)
	assert.Equal(t, c.ID, amended.Audit[1].AssessmentID)
	assert.Equal(t, domain.ActionCreate, amended.Audit[1].Action)
}

func TestStateMachine_Override(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})
	a := draftFor(m, completeForm(domain.RatingHigh))

	t.Run("validation lists every problem", func(t *testing.T) {
		_, err := m.ApplyOverride(a, assessor, OverrideRequest{AdjustedScore: "Severe"})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 2)
	})

	t.Run("adjusted must differ from computed", func(t *testing.T) {
		_, err := m.ApplyOverride(a, assessor, OverrideRequest{AdjustedScore: domain.RatingHigh, Justification: "Same as scored"})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Problems, 1)
		assert.Equal(t, "adjusted_score", verr.Problems[0].Field)
		assert.Contains(t, verr.Problems[0].Message, "High")
		assert.Nil(t, a.Override)
	})

	t.Run("owner applies", func(t *testing.T) {
		tr, err := m.ApplyOverride(a, assessor, OverrideRequest{AdjustedScore: domain.RatingMedium, Justification: "Strong whanau support not captured"})
		require.NoError(t, err)
		o := tr.Assessment.Override
		require.NotNil(t, o)
		assert.Equal(t, domain.RatingHigh, o.OriginalScore)
		assert.Equal(t, domain.RatingMedium, o.AdjustedScore)
		assert.True(t, o.Timestamp.Equal(clock.t))
		assert.Equal(t, domain.RatingMedium, tr.Assessment.TenancyRisk)
		assert.Equal(t, domain.StatusDraft, tr.Assessment.Status)

		again, err := m.ApplyOverride(tr.Assessment, manager, OverrideRequest{AdjustedScore: domain.RatingLow, Justification: "Manager view"})
		require.NoError(t, err)
		assert.Equal(t, domain.RatingLow, again.Assessment.Override.AdjustedScore)
		assert.Equal(t, manager.ID, again.Assessment.Override.ActorID)

		cleared, err := m.ClearOverride(again.Assessment, assessor, "no longer needed")
		require.NoError(t, err)
		assert.Nil(t, cleared.Assessment.Override)
		assert.Equal(t, domain.RatingHigh, cleared.Assessment.TenancyRisk)
		assert.Equal(t, domain.ActionOverrideCleared, cleared.Audit[0].Action)

		_, err = m.ClearOverride(cleared.Assessment, assessor, "")
		requireCode(t, err, domain.CodeStateConflict)
	})

	t.Run("other assessor cannot override", func(t *testing.T) {
		_, err := m.ApplyOverride(a, otherAssessor, OverrideRequest{AdjustedScore: domain.RatingLow, Justification: "j"})
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("other transitions keep the override", func(t *testing.T) {
		tr, err := m.ApplyOverride(a, assessor, OverrideRequest{AdjustedScore: domain.RatingLow, Justification: "j"})
		require.NoError(t, err)
		saved, err := m.SavePart(tr.Assessment, assessor, 6, domain.PartData{"notes": "more"})
		require.NoError(t, err)
		require.NotNil(t, saved.Assessment.Override)
		submitted, err := m.Submit(saved.Assessment, assessor)
		require.NoError(t, err)
		assert.NotNil(t, submitted.Assessment.Override)
	})
}

func TestStateMachine_Delete(t *testing.T) {
	m, clock := newTestMachine(domain.ApprovalPolicy{})
	draft := draftFor(m, completeForm(domain.RatingLow))

	t.Run("assessor deletes own draft", func(t *testing.T) {
		tr, err := m.Delete(draft, assessor, "")
		require.NoError(t, err)
		assert.True(t, tr.Assessment.DeletedAt.Equal(clock.t))
		assert.Empty(t, tr.Notify)

		_, err = m.Delete(tr.Assessment, assessor, "")
		requireCode(t, err, domain.CodeNotFound)
	})

	t.Run("assessor cannot delete others or non-drafts", func(t *testing.T) {
		_, err := m.Delete(draft, otherAssessor, "")
		requireCode(t, err, domain.CodeAuthorization)
		_, err = m.Delete(pending(m, domain.RatingMedium), assessor, "")
		requireCode(t, err, domain.CodeStateConflict)
	})

	t.Run("manager cannot delete", func(t *testing.T) {
		_, err := m.Delete(draft, manager, "reason")
		requireCode(t, err, domain.CodeAuthorization)
	})

	t.Run("senior needs a reason", func(t *testing.T) {
		_, err := m.Delete(pending(m, domain.RatingHigh), senior, "")
		requireCode(t, err, domain.CodeValidation)

		tr, err := m.Delete(pending(m, domain.RatingHigh), senior, "Duplicate record")
		require.NoError(t, err)
		assert.Equal(t, "Duplicate record", tr.Assessment.DeletedReason)
		assert.Equal(t, senior.ID, tr.Assessment.DeletedBy)
		require.Len(t, tr.Notify, 1)
		assert.Equal(t, domain.NotifyRejection, tr.Notify[0].Type)
		assert.Equal(t, assessor.ID, tr.Notify[0].UserID)
	})
}

func TestStateMachine_EveryStatusChangeIsAudited(t *testing.T) {
	m, _ := newTestMachine(domain.ApprovalPolicy{})
	a := draftFor(m, completeForm(domain.RatingMedium))

	steps := []func(*domain.Assessment) (*Transition, error){
		func(a *domain.Assessment) (*Transition, error) { return m.Submit(a, assessor) },
		func(a *domain.Assessment) (*Transition, error) {
			return m.Defer(a, manager, DeferRequest{Reason: "r", FollowUpDate: "2026-10-16"})
		},
		func(a *domain.Assessment) (*Transition, error) { return m.Resubmit(a, assessor, "done") },
		func(a *domain.Assessment) (*Transition, error) { return m.Approve(a, manager, "") },
	}
	for _, step := range steps {
		tr, err := step(a)
		require.NoError(t, err)
		assert.NotEqual(t, tr.From, tr.Assessment.Status)
		require.Len(t, tr.Audit, 1)
		assert.Equal(t, a.ID, tr.Audit[0].AssessmentID)
		assert.NotEmpty(t, tr.Audit[0].ID)
		a = tr.Assessment
	}
	assert.WithinDuration(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), *a.LockedAt, 0)
}
