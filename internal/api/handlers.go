package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pashuvlogs/home-app/internal/domain"
	"github.com/pashuvlogs/home-app/internal/middleware"
	"github.com/pashuvlogs/home-app/internal/service"
)

type createRequest struct {
	ApplicantName string `json:"applicant_name"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// bindOptional decodes a JSON body when one is present. An empty body, with
// or without a Content-Length, leaves dst untouched.
func bindOptional(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) actor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, domain.CodeAuthenticate, "Not authenticated")
	}
	return actor, ok
}

func (s *Server) handleCreate(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := s.deps.Workflow.Create(c.Request.Context(), actor, req.ApplicantName)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleList(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	filter := domain.AssessmentFilter{
		Status:        domain.Status(c.Query("status")),
		Rating:        domain.Rating(c.Query("rating")),
		ApplicantName: c.Query("applicant_name"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.badRequest(c, name, "must be a non-negative integer")
			return
		}
		*dst = n
	}

	list, err := s.deps.Workflow.List(c.Request.Context(), actor, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []*domain.Assessment{}
	}
	c.JSON(http.StatusOK, gin.H{"assessments": list, "count": len(list)})
}

func (s *Server) handleGet(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	view, err := s.deps.Workflow.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSavePart(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	part, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		s.badRequest(c, "part", "must be a number")
		return
	}
	var data domain.PartData
	if err := c.ShouldBindJSON(&data); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := s.deps.Workflow.SavePart(c.Request.Context(), actor, c.Param("id"), part, data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleSubmit(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	a, err := s.deps.Workflow.Submit(c.Request.Context(), actor, c.Param("id"))
	s.respondAssessment(c, a, err)
}

func (s *Server) handleApprove(c *gin.Context) {
	s.withNotes(c, s.deps.Workflow.Approve)
}

func (s *Server) handleReject(c *gin.Context) {
	s.withNotes(c, s.deps.Workflow.Reject)
}

func (s *Server) handleCompleteDeferral(c *gin.Context) {
	s.withNotes(c, s.deps.Workflow.CompleteDeferral)
}

func (s *Server) handleResubmit(c *gin.Context) {
	s.withNotes(c, s.deps.Workflow.Resubmit)
}

func (s *Server) handleDefer(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req service.DeferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := s.deps.Workflow.Defer(c.Request.Context(), actor, c.Param("id"), req)
	s.respondAssessment(c, a, err)
}

func (s *Server) handleAmend(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	a, err := s.deps.Workflow.Amend(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleOverride(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := s.deps.Workflow.ApplyOverride(c.Request.Context(), actor, c.Param("id"), req)
	s.respondAssessment(c, a, err)
}

func (s *Server) handleClearOverride(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := bindOptional(c, &req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := s.deps.Workflow.ClearOverride(c.Request.Context(), actor, c.Param("id"), req.Reason)
	s.respondAssessment(c, a, err)
}

func (s *Server) handleDelete(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := bindOptional(c, &req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	if err := s.deps.Workflow.Delete(c.Request.Context(), actor, c.Param("id"), req.Reason); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAudit(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	events, err := s.deps.Workflow.AuditTrail(c.Request.Context(), actor, c.Param("id"), domain.AuditAction(c.Query("action")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type notesCommand func(ctx context.Context, actor domain.Actor, id, notes string) (*domain.Assessment, error)

// withNotes runs a command whose only input is an optional notes field.
func (s *Server) withNotes(c *gin.Context, command notesCommand) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req notesRequest
	if err := bindOptional(c, &req); err != nil {
		s.badRequest(c, "body", "invalid JSON body")
		return
	}
	a, err := command(c.Request.Context(), actor, c.Param("id"), req.Notes)
	s.respondAssessment(c, a, err)
}

func (s *Server) respondAssessment(c *gin.Context, a *domain.Assessment, err error) {
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
