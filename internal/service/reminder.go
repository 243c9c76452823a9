package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// ReminderService notifies owners and approvers the day before a deferred
// assessment's follow-up date.
type ReminderService struct {
	assessments domain.AssessmentRepository
	dispatch    *dispatcher
	ledger      domain.ReminderLedger
	logger      *logrus.Logger
}

// NewReminderService creates a new reminder service
func NewReminderService(store domain.Store, notifier domain.Notifier, ledger domain.ReminderLedger, logger *logrus.Logger) *ReminderService {
	return &ReminderService{
		assessments: store.Assessments(),
		dispatch: &dispatcher{
			users:    store.Users(),
			notifier: notifier,
			logger:   logger,
			now:      func() time.Time { return time.Now().UTC() },
			newID:    uuid.NewString,
		},
		ledger: ledger,
		logger: logger,
	}
}

// Run sends reminders for every deferred assessment due tomorrow relative to
// today and returns how many assessments were checked. Assessments already
// reminded today are skipped. When nothing could be delivered for an
// assessment its ledger entry is dropped so a later scan the same day retries.
func (r *ReminderService) Run(ctx context.Context, today time.Time) (int, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	due := day.AddDate(0, 0, 1)

	deferred, err := r.assessments.DueForFollowUp(ctx, due)
	if err != nil {
		return 0, fmt.Errorf("find assessments due for follow-up: %w", err)
	}

	sent := 0
	for _, a := range deferred {
		first, err := r.ledger.MarkSent(ctx, a.ID, day)
		if err != nil {
			r.logger.WithError(err).WithField("assessment_id", a.ID).Error("Failed to record reminder")
			continue
		}
		if !first {
			continue
		}
		delivered, failed := r.dispatch.deliver(ctx, reminderIntents(a))
		sent += delivered
		if delivered == 0 && failed > 0 {
			if err := r.ledger.Forget(ctx, a.ID, day); err != nil {
				r.logger.WithError(err).WithField("assessment_id", a.ID).Error("Failed to release reminder for retry")
				continue
			}
			r.logger.WithField("assessment_id", a.ID).Warn("Reminder not delivered, will retry on the next scan")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"due_date":      due.Format(domain.DateLayout),
		"checked":       len(deferred),
		"notifications": sent,
	}).Info("Deferral reminder scan complete")

	return len(deferred), nil
}

func reminderIntents(a *domain.Assessment) []NotificationIntent {
	reason, date := "Not specified", ""
	if a.Deferral != nil {
		date = a.Deferral.FollowUpDate
		if a.Deferral.Reason != "" {
			reason = a.Deferral.Reason
		}
	}
	return []NotificationIntent{
		{
			UserID:       a.AssessorID,
			AssessmentID: a.ID,
			Type:         domain.NotifyFollowUp,
			Message: fmt.Sprintf("Reminder: Follow-up for %s is due tomorrow (%s). Reason: %s",
				a.ApplicantName, date, reason),
		},
		{
			Roles:        []domain.Role{domain.RoleManager, domain.RoleSeniorManager},
			AssessmentID: a.ID,
			Type:         domain.NotifyFollowUp,
			Message:      fmt.Sprintf("Reminder: Follow-up for %s is due tomorrow (%s).", a.ApplicantName, date),
		},
	}
}

// Start runs the scan every interval until ctx is cancelled.
func (r *ReminderService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := r.Run(ctx, now.UTC()); err != nil {
				r.logger.WithError(err).Error("Deferral reminder scan failed")
			}
		}
	}
}
