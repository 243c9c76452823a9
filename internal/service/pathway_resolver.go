package service

import (
	"github.com/pashuvlogs/home-app/internal/domain"
)

// Pathway is the approver tier an assessment must pass through.
type Pathway string

const (
	PathwayFrontline     Pathway = "frontline"
	PathwayManager       Pathway = "manager"
	PathwaySeniorManager Pathway = "senior_manager"
)

// PathwayDecision describes where a submission goes.
type PathwayDecision struct {
	Pathway Pathway `json:"pathway"`
	// RequiredRole is empty for the frontline pathway.
	RequiredRole domain.Role `json:"required_role,omitempty"`
	SelfApprove  bool        `json:"self_approve"`
	// Status is the status the assessment enters on submission.
	Status domain.Status `json:"status"`
}

// ApprovalPathwayResolver maps a determining rating to an approval pathway.
type ApprovalPathwayResolver struct{}

// NewApprovalPathwayResolver creates a new pathway resolver
func NewApprovalPathwayResolver() *ApprovalPathwayResolver {
	return &ApprovalPathwayResolver{}
}

// Resolve returns the pathway for a determining rating. Unknown ratings are
// treated as Low.
func (r *ApprovalPathwayResolver) Resolve(determining domain.Rating) PathwayDecision {
	switch determining {
	case domain.RatingHigh:
		return PathwayDecision{
			Pathway:      PathwaySeniorManager,
			RequiredRole: domain.RoleSeniorManager,
			Status:       domain.StatusPendingSenior,
		}
	case domain.RatingMedium:
		return PathwayDecision{
			Pathway:      PathwayManager,
			RequiredRole: domain.RoleManager,
			Status:       domain.StatusPendingManager,
		}
	default:
		return PathwayDecision{
			Pathway:     PathwayFrontline,
			SelfApprove: true,
			Status:      domain.StatusApproved,
		}
	}
}

// ResolveQueue returns the approval queue for re-entry after a deferral.
// Resubmitted assessments always need an approver, so Low routes to the
// manager queue.
func (r *ApprovalPathwayResolver) ResolveQueue(determining domain.Rating) PathwayDecision {
	d := r.Resolve(determining)
	if d.SelfApprove {
		return r.Resolve(domain.RatingMedium)
	}
	return d
}
