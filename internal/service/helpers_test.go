package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"github.com/pashuvlogs/home-app/internal/domain"
)

var (
	assessor      = domain.Actor{ID: "u-assessor", FullName: "Ana Assessor", Role: domain.RoleAssessor}
	otherAssessor = domain.Actor{ID: "u-assessor-2", FullName: "Ola Other", Role: domain.RoleAssessor}
	manager       = domain.Actor{ID: "u-manager", FullName: "Mia Manager", Role: domain.RoleManager}
	senior        = domain.Actor{ID: "u-senior", FullName: "Sam Senior", Role: domain.RoleSeniorManager}
)

// completeForm returns a submittable form whose residual rating is rating.
func completeForm(rating domain.Rating) domain.FormData {
	fd := domain.FormData{
		"part1": {"applicantName": "Jane Doe", "dateOfAssessment": "2026-10-01", "assessorName": "Ana Assessor"},
		"part2": {"roughSleepingDuration": "long_term_over_12m", "currentHousingStatus": "couch_surfing"},
		"part3": {
			"antiSocialBehaviour":   "positive_history",
			"criminalHistory":       "no_concerns",
			"gangAffiliations":      "no_concerns",
			"thirdPartyAssociation": "no_concerns",
			"propertyDamage":        "no_damage",
			"rent":                  "no_concerns",
			"tenantResponsibility":  "strong",
		},
		"part4": {"physicalHealth": "no_significant", "mentalHealth": "no_concerns", "substanceAbuse": "no_concerns"},
		"part5": {"supportNetwork": "strong", "accessibilityNeeds": "none", "culturalConnections": "strong"},
		"part8": {"finalRecommendation": "proceed_without_conditions"},
	}
	switch rating {
	case domain.RatingMedium:
		// gross 6, no mitigation
		fd["part3"]["criminalHistory"] = "drug_related"
		fd["part3"]["rent"] = "arrears_history"
		fd["part3"]["tenantResponsibility"] = "moderate"
		fd["part5"] = domain.PartData{"supportNetwork": "none", "accessibilityNeeds": "significant", "culturalConnections": "limited"}
	case domain.RatingHigh:
		// gross 12, no mitigation
		fd["part3"]["antiSocialBehaviour"] = "multiple_evictions"
		fd["part3"]["criminalHistory"] = "violence"
		fd["part3"]["gangAffiliations"] = "gang_member"
		fd["part5"] = domain.PartData{"supportNetwork": "none", "accessibilityNeeds": "significant", "culturalConnections": "limited"}
	}
	return fd
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestMachine(policy domain.ApprovalPolicy) (*AssessmentStateMachine, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	logger, _ := quietLogger()
	m := NewAssessmentStateMachine(NewScoringEngine(nil, logger), policy).WithClock(clock.now)
	return m, clock
}

// draftFor builds a stored draft owned by assessor with the given form.
func draftFor(m *AssessmentStateMachine, fd domain.FormData) *domain.Assessment {
	a := &domain.Assessment{
		ID:            "a-1",
		ApplicantName: "Jane Doe",
		AssessorID:    assessor.ID,
		Status:        domain.StatusDraft,
		CurrentPart:   8,
		FormData:      fd,
	}
	m.Refresh(a)
	return a
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// recordingNotifier keeps every delivered notification.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.UserID)
	}
	sort.Strings(out)
	return out
}

// memStore is an in-memory Store. WithinTx stages writes on copies and only
// publishes them when the callback succeeds.
type memStore struct {
	mu          sync.Mutex
	assessments map[string]*domain.Assessment
	audit       []*domain.AuditEvent
	users       []*domain.User
	failAudit   bool
}

func newMemStore() *memStore {
	return &memStore{
		assessments: make(map[string]*domain.Assessment),
		users: []*domain.User{
			{ID: assessor.ID, FullName: assessor.FullName, Role: domain.RoleAssessor},
			{ID: otherAssessor.ID, FullName: otherAssessor.FullName, Role: domain.RoleAssessor},
			{ID: manager.ID, FullName: manager.FullName, Role: domain.RoleManager},
			{ID: "u-manager-2", FullName: "Max Manager", Role: domain.RoleManager},
			{ID: senior.ID, FullName: senior.FullName, Role: domain.RoleSeniorManager},
		},
	}
}

func (s *memStore) put(a *domain.Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[a.ID] = a.Clone()
}

func (s *memStore) auditActions(id string) []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditAction
	for _, ev := range s.audit {
		if ev.AssessmentID == id {
			out = append(out, ev.Action)
		}
	}
	return out
}

func (s *memStore) Assessments() domain.AssessmentRepository { return memAssessments{&memTx{store: s, live: true}} }
func (s *memStore) AuditLog() domain.AuditRecorder           { return memAudit{&memTx{store: s, live: true}} }
func (s *memStore) Users() domain.UserDirectory              { return s }
func (s *memStore) Close() error                             { return nil }

func (s *memStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx := &memTx{store: s, staged: make(map[string]*domain.Assessment)}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range tx.staged {
		s.assessments[id] = a
	}
	s.audit = append(s.audit, tx.events...)
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", id)
}

func (s *memStore) ListByRole(_ context.Context, roles ...domain.Role) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range s.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type memTx struct {
	store  *memStore
	live   bool
	staged map[string]*domain.Assessment
	events []*domain.AuditEvent
}

func (t *memTx) Assessments() domain.AssessmentRepository { return memAssessments{t} }
func (t *memTx) AuditLog() domain.AuditRecorder           { return memAudit{t} }

type memAssessments struct{ *memTx }

func (r memAssessments) Create(_ context.Context, a *domain.Assessment) error {
	if r.live {
		r.store.put(a)
		return nil
	}
	r.staged[a.ID] = a.Clone()
	return nil
}

func (r memAssessments) Get(_ context.Context, id string) (*domain.Assessment, error) {
	if !r.live {
		if a, ok := r.staged[id]; ok {
			return a.Clone(), nil
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.assessments[id]
	if !ok {
		return nil, domain.NewNotFoundError("assessment", id)
	}
	return a.Clone(), nil
}

func (r memAssessments) Update(ctx context.Context, a *domain.Assessment) error {
	if _, err := r.Get(ctx, a.ID); err != nil {
		return err
	}
	return r.Create(ctx, a)
}

func (r memAssessments) List(_ context.Context, f domain.AssessmentFilter) ([]*domain.Assessment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Assessment
	for _, a := range r.store.assessments {
		if f.AssessorID != "" && a.AssessorID != f.AssessorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Rating != "" && a.TenancyRisk != f.Rating {
			continue
		}
		if f.ApplicantName != "" && !strings.Contains(strings.ToLower(a.ApplicantName), strings.ToLower(f.ApplicantName)) {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAssessments) DueForFollowUp(_ context.Context, date time.Time) ([]*domain.Assessment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Assessment
	for _, a := range r.store.assessments {
		if a.Status == domain.StatusDeferred && !a.IsDeleted() && a.Deferral != nil &&
			a.Deferral.FollowUpDate == date.Format(domain.DateLayout) {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

type memAudit struct{ *memTx }

func (r memAudit) Append(_ context.Context, ev *domain.AuditEvent) error {
	if r.store.failAudit {
		return errors.New("audit log unavailable")
	}
	if r.live {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.audit = append(r.store.audit, ev)
		return nil
	}
	r.events = append(r.events, ev)
	return nil
}

func (r memAudit) List(_ context.Context, assessmentID string, action domain.AuditAction) ([]*domain.AuditEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.AuditEvent
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		ev := r.store.audit[i]
		if ev.AssessmentID == assessmentID && (action == "" || ev.Action == action) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// memLedger is an in-memory reminder ledger.
type memLedger struct {
	seen map[string]bool
}

func (l *memLedger) MarkSent(_ context.Context, id string, day time.Time) (bool, error) {
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	key := id + "|" + day.Format(domain.DateLayout)
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

func (l *memLedger) Forget(_ context.Context, id string, day time.Time) error {
	delete(l.seen, id+"|"+day.Format(domain.DateLayout))
	return nil
}
