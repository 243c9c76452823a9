package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// BreakerNotifier wraps notification delivery with a circuit breaker so a
// failing inbox store does not slow every workflow command.
type BreakerNotifier struct {
	next    domain.Notifier
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewBreakerNotifier creates a notifier guarded by a circuit breaker
func NewBreakerNotifier(next domain.Notifier, cfg domain.CircuitBreakerConfig, logger *logrus.Logger) *BreakerNotifier {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	n := &BreakerNotifier{next: next, logger: logger}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return n
}

// Notify delivers n through the wrapped notifier unless the breaker is open.
func (b *BreakerNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("deliver notification to %s: %w", n.UserID, err)
	}
	return nil
}

// State reports the breaker state, for health checks.
func (b *BreakerNotifier) State() gobreaker.State {
	return b.breaker.State()
}

// dispatcher expands notification intents into per-user notifications.
type dispatcher struct {
	users    domain.UserDirectory
	notifier domain.Notifier
	logger   *logrus.Logger
	now      func() time.Time
	newID    func() string
}

// dispatch delivers every intent and returns how many notifications were
// delivered. Failures are logged and never returned: delivery happens after
// the transition committed and cannot undo it.
func (d *dispatcher) dispatch(ctx context.Context, intents []NotificationIntent) int {
	delivered, _ := d.deliver(ctx, intents)
	return delivered
}

// deliver is dispatch that also counts failures, including recipient lookups
// that failed.
func (d *dispatcher) deliver(ctx context.Context, intents []NotificationIntent) (delivered, failed int) {
	for _, intent := range intents {
		recipients, err := d.recipients(ctx, intent)
		if err != nil {
			d.logger.WithError(err).WithField("assessment_id", intent.AssessmentID).
				Error("Failed to resolve notification recipients")
			failed++
			continue
		}
		for _, userID := range recipients {
			n := &domain.Notification{
				ID:           d.newID(),
				UserID:       userID,
				AssessmentID: intent.AssessmentID,
				Type:         intent.Type,
				Message:      intent.Message,
				CreatedAt:    d.now(),
			}
			if err := d.notifier.Notify(ctx, n); err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"assessment_id": intent.AssessmentID,
					"user_id":       userID,
					"type":          string(intent.Type),
				}).Error("Failed to deliver notification")
				failed++
				continue
			}
			delivered++
		}
	}
	return delivered, failed
}

func (d *dispatcher) recipients(ctx context.Context, intent NotificationIntent) ([]string, error) {
	var ids []string
	if intent.UserID != "" {
		ids = append(ids, intent.UserID)
	}
	if len(intent.Roles) > 0 {
		users, err := d.users.ListByRole(ctx, intent.Roles...)
		if err != nil {
			return nil, fmt.Errorf("list users by role: %w", err)
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}
