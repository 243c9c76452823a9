package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// AssessmentView is an assessment together with values derived for display.
type AssessmentView struct {
	*domain.Assessment
	Resolution       Resolution      `json:"resolution"`
	Pathway          PathwayDecision `json:"pathway"`
	RecommendedTypes []HousingType   `json:"recommended_housing_types"`
}

// WorkflowService executes workflow commands: it loads the aggregate, runs
// the state machine, persists the result with its audit events in one
// transaction, and delivers notifications after commit.
type WorkflowService struct {
	store    domain.Store
	machine  *AssessmentStateMachine
	dispatch *dispatcher
	logger   *logrus.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(store domain.Store, machine *AssessmentStateMachine, notifier domain.Notifier, logger *logrus.Logger) *WorkflowService {
	return &WorkflowService{
		store:   store,
		machine: machine,
		dispatch: &dispatcher{
			users:    store.Users(),
			notifier: notifier,
			logger:   logger,
			now:      func() time.Time { return time.Now().UTC() },
			newID:    uuid.NewString,
		},
		logger: logger,
	}
}

// Create starts a new draft for applicantName.
func (s *WorkflowService) Create(ctx context.Context, actor domain.Actor, applicantName string) (*domain.Assessment, error) {
	t, err := s.machine.Create(actor, applicantName)
	if err != nil {
		s.logGuardFailure("create", "", actor, err)
		return nil, err
	}
	if err := s.commit(ctx, t); err != nil {
		return nil, err
	}
	return t.Created, nil
}

// SavePart merges data into one questionnaire part.
func (s *WorkflowService) SavePart(ctx context.Context, actor domain.Actor, id string, part int, data domain.PartData) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "save", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.SavePart(a, actor, part, data)
	})
}

// Submit sends a draft for approval, or self-approves it when Low.
func (s *WorkflowService) Submit(ctx context.Context, actor domain.Actor, id string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "submit", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Submit(a, actor)
	})
}

// Approve approves a pending assessment.
func (s *WorkflowService) Approve(ctx context.Context, actor domain.Actor, id, notes string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "approve", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Approve(a, actor, notes)
	})
}

// Reject rejects a pending assessment.
func (s *WorkflowService) Reject(ctx context.Context, actor domain.Actor, id, notes string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "reject", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Reject(a, actor, notes)
	})
}

// Defer puts a pending assessment on hold.
func (s *WorkflowService) Defer(ctx context.Context, actor domain.Actor, id string, req DeferRequest) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "defer", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Defer(a, actor, req)
	})
}

// CompleteDeferral returns a deferred assessment to its approval queue.
func (s *WorkflowService) CompleteDeferral(ctx context.Context, actor domain.Actor, id, notes string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "defer_complete", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.CompleteDeferral(a, actor, notes)
	})
}

// Resubmit answers a deferral.
func (s *WorkflowService) Resubmit(ctx context.Context, actor domain.Actor, id, notes string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "resubmit", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Resubmit(a, actor, notes)
	})
}

// Amend creates a new draft from an approved assessment and returns it.
func (s *WorkflowService) Amend(ctx context.Context, actor domain.Actor, id string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "amend", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Amend(a, actor)
	})
}

// ApplyOverride attaches or replaces the manual rating.
func (s *WorkflowService) ApplyOverride(ctx context.Context, actor domain.Actor, id string, req OverrideRequest) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "override", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.ApplyOverride(a, actor, req)
	})
}

// ClearOverride removes the manual rating.
func (s *WorkflowService) ClearOverride(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Assessment, error) {
	return s.apply(ctx, actor, id, "override_cleared", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.ClearOverride(a, actor, reason)
	})
}

// Delete soft-deletes an assessment.
func (s *WorkflowService) Delete(ctx context.Context, actor domain.Actor, id, reason string) error {
	_, err := s.apply(ctx, actor, id, "delete", func(a *domain.Assessment) (*Transition, error) {
		return s.machine.Delete(a, actor, reason)
	})
	return err
}

// Get returns one assessment. Assessors only see their own; soft-deleted
// assessments are not found.
func (s *WorkflowService) Get(ctx context.Context, actor domain.Actor, id string) (*AssessmentView, error) {
	a, err := s.store.Assessments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted() {
		return nil, domain.NewNotFoundError("assessment", id)
	}
	if err := canView(actor, a); err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// List returns assessments visible to the actor, including soft-deleted ones.
func (s *WorkflowService) List(ctx context.Context, actor domain.Actor, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	if !actor.Role.Can(domain.CapViewAll) {
		filter.AssessorID = actor.ID
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Rating != "" && !filter.Rating.IsValid() {
		return nil, domain.NewValidationError("rating", fmt.Sprintf("unknown rating %q", filter.Rating))
	}
	return s.store.Assessments().List(ctx, filter)
}

// AuditTrail returns the audit events of an assessment, newest first.
func (s *WorkflowService) AuditTrail(ctx context.Context, actor domain.Actor, id string, action domain.AuditAction) ([]*domain.AuditEvent, error) {
	a, err := s.store.Assessments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, a); err != nil {
		return nil, err
	}
	return s.store.AuditLog().List(ctx, id, action)
}

func canView(actor domain.Actor, a *domain.Assessment) error {
	if actor.Role.Can(domain.CapViewAll) || a.AssessorID == actor.ID {
		return nil
	}
	return domain.NewAuthorizationError("view assessment", actor, "access denied")
}

func (s *WorkflowService) view(a *domain.Assessment) *AssessmentView {
	res := s.machine.Resolve(a)
	v := &AssessmentView{
		Assessment: a,
		Resolution: res,
		Pathway:    s.machine.pathways.Resolve(res.Determining),
		RecommendedTypes: RecommendHousingTypes(
			s.machine.engine.Compute(a.FormData).ResidualScore,
			a.FormData.Selection(domain.CatAccessibilityNeeds),
		),
	}
	return v
}

// apply loads the assessment inside a transaction, runs the command and
// persists the transition with its audit events before dispatching
// notifications.
func (s *WorkflowService) apply(ctx context.Context, actor domain.Actor, id, action string, command func(*domain.Assessment) (*Transition, error)) (*domain.Assessment, error) {
	var t *Transition
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		a, err := tx.Assessments().Get(ctx, id)
		if err != nil {
			return err
		}
		t, err = command(a)
		if err != nil {
			s.logGuardFailure(action, id, actor, err)
			return err
		}
		return persist(ctx, tx, t)
	})
	if err != nil {
		if !isWorkflowError(err) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"assessment_id": id,
				"action":        action,
				"actor_id":      actor.ID,
			}).Error("Workflow command failed")
		}
		return nil, err
	}

	s.logTransition(t, actor)
	s.dispatch.dispatch(ctx, t.Notify)
	if t.Assessment != nil {
		return t.Assessment, nil
	}
	return t.Created, nil
}

// commit persists a transition that does not start from a stored aggregate.
func (s *WorkflowService) commit(ctx context.Context, t *Transition) error {
	if err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		return persist(ctx, tx, t)
	}); err != nil {
		s.logger.WithError(err).WithField("action", string(t.Action)).Error("Workflow command failed")
		return err
	}
	s.logTransition(t, domain.Actor{ID: actorOf(t)})
	s.dispatch.dispatch(ctx, t.Notify)
	return nil
}

func persist(ctx context.Context, tx domain.Tx, t *Transition) error {
	if t.Created != nil {
		if err := tx.Assessments().Create(ctx, t.Created); err != nil {
			return fmt.Errorf("create assessment: %w", err)
		}
	}
	if t.Assessment != nil {
		if err := tx.Assessments().Update(ctx, t.Assessment); err != nil {
			return fmt.Errorf("update assessment: %w", err)
		}
	}
	for _, ev := range t.Audit {
		if err := tx.AuditLog().Append(ctx, ev); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
	}
	return nil
}

func actorOf(t *Transition) string {
	if len(t.Audit) == 0 {
		return ""
	}
	return t.Audit[0].ActorID
}

func (s *WorkflowService) logTransition(t *Transition, actor domain.Actor) {
	target := t.Assessment
	if target == nil {
		target = t.Created
	}
	fields := logrus.Fields{
		"assessment_id": target.ID,
		"action":        string(t.Action),
		"actor_id":      actor.ID,
		"from_status":   string(t.From),
		"to_status":     string(target.Status),
	}
	if t.Action == domain.ActionAmend {
		fields["assessment_id"] = target.AmendedFromID
		fields["new_assessment_id"] = target.ID
	}
	s.logger.WithFields(fields).Info("Assessment transition applied")
}

func (s *WorkflowService) logGuardFailure(action, id string, actor domain.Actor, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"assessment_id": id,
		"action":        action,
		"actor_id":      actor.ID,
		"code":          domain.CodeOf(err),
	}).Warn("Workflow command refused")
}

func isWorkflowError(err error) bool {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthorizationError
		serr *domain.StateConflictError
	)
	return errors.As(err, &verr) || errors.As(err, &aerr) || errors.As(err, &serr) || errors.Is(err, domain.ErrNotFound)
}
