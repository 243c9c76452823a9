// Package notification stores delivered notifications and serves each user's
// inbox. PostgresStore runs on database/sql with lib/pq; SQLiteStore on
// modernc for single-node deployments.
package notification

import (
	"time"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// MaxListed is the most notifications returned for one inbox listing.
const MaxListed = 50

// clampLimit applies the listing cap.
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListed {
		return MaxListed
	}
	return limit
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(s scanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var kind string
	if err := s.Scan(&n.ID, &n.UserID, &n.AssessmentID, &kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

func createdAt(n *domain.Notification) time.Time {
	if n.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return n.CreatedAt
}

func notOwner(userID string) error {
	return domain.NewAuthorizationError("mark notification read", domain.Actor{ID: userID}, "notification belongs to another user")
}
