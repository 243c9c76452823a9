package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pashuvlogs/home-app/internal/domain"
)

func (s *Server) handleListNotifications(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.badRequest(c, "limit", "must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.deps.Inbox.ListForUser(c.Request.Context(), actor.ID, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if err := s.deps.Inbox.MarkRead(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	n, err := s.deps.Inbox.MarkAllRead(c.Request.Context(), actor.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// handleCheckReminders runs the deferral reminder scan for today.
func (s *Server) handleCheckReminders(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if !actor.Role.Can(domain.CapRunReminders) {
		s.respondError(c, domain.NewAuthorizationError("run reminders", actor, "approvers only"))
		return
	}
	checked, err := s.deps.Reminders.Run(c.Request.Context(), s.now().UTC())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checked": checked})
}
