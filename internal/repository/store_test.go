package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// testStore is implemented by both stores.
type testStore interface {
	domain.Store
	SaveUser(ctx context.Context, u *domain.User) error
}

var testUsers = []*domain.User{
	{ID: "u-assessor", Username: "ana", FullName: "Ana Assessor", Role: domain.RoleAssessor},
	{ID: "u-assessor-2", Username: "ola", FullName: "Ola Other", Role: domain.RoleAssessor},
	{ID: "u-manager", Username: "mia", FullName: "Mia Manager", Role: domain.RoleManager},
	{ID: "u-manager-2", Username: "max", FullName: "Max Manager", Role: domain.RoleManager},
	{ID: "u-senior", Username: "sam", FullName: "Sam Senior", Role: domain.RoleSeniorManager},
}

var baseTime = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newAssessment(id, assessorID, name string, created time.Time) *domain.Assessment {
	saved := created.Add(time.Minute)
	return &domain.Assessment{
		ID:            id,
		ApplicantName: name,
		AssessorID:    assessorID,
		Status:        domain.StatusDraft,
		CurrentPart:   3,
		FormData: domain.FormData{
			"part1": {"applicantName": name, "dateOfAssessment": "2026-10-15"},
			"part2": {"roughSleepingDuration": "long_term_over_12m", "currentHousingStatus": "couch_surfing"},
			"part3": {"rent": "arrears_history", "notes": []any{"first", "second"}},
		},
		Ratings: domain.AssessmentRatings{
			HousingNeedScore:        7,
			HousingNeedRating:       domain.RatingHigh,
			GrossChallengeScore:     2,
			GrossChallengeRating:    domain.RatingLow,
			ResidualChallengeRating: domain.RatingLow,
		},
		TenancyRisk:   domain.RatingLow,
		LastSavedAt:   &saved,
		LastSavedPart: 3,
		CreatedAt:     created,
		UpdatedAt:     saved,
	}
}

func seedUsers(t *testing.T, s testStore) {
	t.Helper()
	for _, u := range testUsers {
		require.NoError(t, s.SaveUser(context.Background(), u))
	}
}

func create(t *testing.T, s testStore, a *domain.Assessment, events ...*domain.AuditEvent) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(tx domain.Tx) error {
		if err := tx.Assessments().Create(context.Background(), a); err != nil {
			return err
		}
		for _, ev := range events {
			if err := tx.AuditLog().Append(context.Background(), ev); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// runStoreTests exercises the behavior every domain.Store must share.
func runStoreTests(t *testing.T, newStore func(t *testing.T) testStore) {
	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAssessment("a-1", "u-assessor", "Jane Doe", baseTime)
		a.Override = &domain.Override{
			OriginalScore: domain.RatingHigh,
			AdjustedScore: domain.RatingLow,
			Justification: "Strong family support",
			ActorID:       "u-assessor",
			ActorName:     "Ana Assessor",
			Timestamp:     baseTime,
		}
		create(t, s, a)

		got, err := s.Assessments().Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, a.ApplicantName, got.ApplicantName)
		assert.Equal(t, domain.StatusDraft, got.Status)
		assert.Equal(t, 3, got.CurrentPart)
		assert.Equal(t, "long_term_over_12m", got.FormData.String(2, "roughSleepingDuration"))
		assert.Equal(t, []any{"first", "second"}, got.FormData["part3"]["notes"])
		assert.Equal(t, a.Ratings, got.Ratings)
		assert.Equal(t, domain.RatingLow, got.TenancyRisk)
		require.NotNil(t, got.Override)
		assert.Equal(t, "Strong family support", got.Override.Justification)
		assert.True(t, got.Override.Timestamp.Equal(baseTime))
		assert.Nil(t, got.Deferral)
		assert.Nil(t, got.LockedAt)
		require.NotNil(t, got.LastSavedAt)
		assert.True(t, got.LastSavedAt.Equal(*a.LastSavedAt))
		assert.True(t, got.CreatedAt.Equal(baseTime))
	})

	t.Run("missing assessment", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Assessments().Get(ctx, "nope")
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		err = s.Assessments().Update(ctx, newAssessment("nope", "u-assessor", "X", baseTime))
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("update and follow-up query", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAssessment("a-1", "u-assessor", "Jane Doe", baseTime)
		create(t, s, a)

		locked := baseTime.Add(time.Hour)
		a.Status = domain.StatusDeferred
		a.Deferral = &domain.Deferral{
			Reason:       "Awaiting references",
			FollowUpDate: "2026-10-16",
			DeferredBy:   "u-manager",
			DeferredAt:   locked,
		}
		a.UpdatedAt = locked
		require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
			return tx.Assessments().Update(ctx, a)
		}))

		due, err := s.Assessments().DueForFollowUp(ctx, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "Awaiting references", due[0].Deferral.Reason)

		none, err := s.Assessments().DueForFollowUp(ctx, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, none)

		deleted := locked.Add(time.Hour)
		a.DeletedAt = &deleted
		a.DeletedBy = "u-senior"
		require.NoError(t, s.Assessments().Update(ctx, a))
		due, err = s.Assessments().DueForFollowUp(ctx, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, due)

		got, err := s.Assessments().Get(ctx, "a-1")
		require.NoError(t, err)
		assert.True(t, got.IsDeleted())
		assert.Equal(t, "u-senior", got.DeletedBy)
	})

	t.Run("failed transaction writes nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAssessment("a-1", "u-assessor", "Jane Doe", baseTime)
		create(t, s, a)

		boom := errors.New("audit unavailable")
		err := s.WithinTx(ctx, func(tx domain.Tx) error {
			current, err := tx.Assessments().Get(ctx, "a-1")
			if err != nil {
				return err
			}
			current.Status = domain.StatusApproved
			if err := tx.Assessments().Update(ctx, current); err != nil {
				return err
			}
			if err := tx.AuditLog().Append(ctx, &domain.AuditEvent{
				ID: "ev-1", AssessmentID: "a-1", ActorID: "u-manager", Action: domain.ActionApprove, CreatedAt: baseTime,
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Assessments().Get(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, got.Status)
		events, err := s.AuditLog().List(ctx, "a-1", "")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("list filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a1 := newAssessment("a-1", "u-assessor", "Jane Doe", baseTime)
		a2 := newAssessment("a-2", "u-assessor", "John Smith", baseTime.Add(time.Hour))
		a2.Status = domain.StatusPendingSenior
		a2.TenancyRisk = domain.RatingHigh
		a3 := newAssessment("a-3", "u-assessor-2", "Janet Brown", baseTime.Add(2*time.Hour))
		for _, a := range []*domain.Assessment{a1, a2, a3} {
			create(t, s, a)
		}

		ids := func(f domain.AssessmentFilter) []string {
			list, err := s.Assessments().List(ctx, f)
			require.NoError(t, err)
			out := make([]string, 0, len(list))
			for _, a := range list {
				out = append(out, a.ID)
			}
			return out
		}

		assert.Equal(t, []string{"a-3", "a-2", "a-1"}, ids(domain.AssessmentFilter{}))
		assert.Equal(t, []string{"a-2", "a-1"}, ids(domain.AssessmentFilter{AssessorID: "u-assessor"}))
		assert.Equal(t, []string{"a-2"}, ids(domain.AssessmentFilter{Status: domain.StatusPendingSenior}))
		assert.Equal(t, []string{"a-2"}, ids(domain.AssessmentFilter{Rating: domain.RatingHigh}))
		assert.Equal(t, []string{"a-3", "a-1"}, ids(domain.AssessmentFilter{ApplicantName: "JAN"}))
		assert.Equal(t, []string{"a-2"}, ids(domain.AssessmentFilter{Limit: 1, Offset: 1}))
	})

	t.Run("audit trail newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAssessment("a-1", "u-assessor", "Jane Doe", baseTime)
		create(t, s, a,
			&domain.AuditEvent{ID: "ev-1", AssessmentID: "a-1", ActorID: "u-assessor", Action: domain.ActionCreate, CreatedAt: baseTime},
			&domain.AuditEvent{ID: "ev-2", AssessmentID: "a-1", ActorID: "u-assessor", Action: domain.ActionSave,
				Details: map[string]any{"part_number": 2}, CreatedAt: baseTime},
			&domain.AuditEvent{ID: "ev-3", AssessmentID: "a-1", ActorID: "u-assessor", Action: domain.ActionSubmit,
				Details: map[string]any{"pathway": "manager"}, CreatedAt: baseTime},
		)

		events, err := s.AuditLog().List(ctx, "a-1", "")
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "ev-3", events[0].ID)
		assert.Equal(t, "ev-1", events[2].ID)
		assert.Equal(t, "manager", events[0].Details["pathway"])
		assert.True(t, events[0].CreatedAt.Equal(baseTime))

		saves, err := s.AuditLog().List(ctx, "a-1", domain.ActionSave)
		require.NoError(t, err)
		require.Len(t, saves, 1)
		assert.EqualValues(t, 2, saves[0].Details["part_number"])
	})

	t.Run("user directory", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.Users().GetUser(ctx, "u-manager")
		require.NoError(t, err)
		assert.Equal(t, "Mia Manager", u.FullName)
		assert.Equal(t, domain.RoleManager, u.Role)

		_, err = s.Users().GetUser(ctx, "ghost")
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		approvers, err := s.Users().ListByRole(ctx, domain.RoleManager, domain.RoleSeniorManager)
		require.NoError(t, err)
		require.Len(t, approvers, 3)
		assert.Equal(t, "u-manager", approvers[0].ID)
		assert.Equal(t, "u-senior", approvers[2].ID)

		require.NoError(t, s.SaveUser(ctx, &domain.User{ID: "u-manager", Username: "mia", FullName: "Mia Promoted", Role: domain.RoleSeniorManager}))
		seniors, err := s.Users().ListByRole(ctx, domain.RoleSeniorManager)
		require.NoError(t, err)
		assert.Len(t, seniors, 2)
	})
}
