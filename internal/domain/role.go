package domain

// Role identifies what a user is allowed to do in the workflow.
type Role string

const (
	RoleAssessor      Role = "assessor"
	RoleManager       Role = "manager"
	RoleSeniorManager Role = "senior_manager"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAssessor, RoleManager, RoleSeniorManager:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Capability is a single permission granted to a role.
type Capability string

const (
	CapCreateAssessment Capability = "create_assessment"
	CapEditOwn          Capability = "edit_own"
	CapSubmitOwn        Capability = "submit_own"
	CapResubmitOwn      Capability = "resubmit_own"
	CapDeleteOwnDraft   Capability = "delete_own_draft"
	CapOverrideOwn      Capability = "override_own"
	CapOverrideAny      Capability = "override_any"
	CapDecide           Capability = "decide" // reject, defer, complete deferral
	CapApproveManager   Capability = "approve_manager_tier"
	CapApproveSenior    Capability = "approve_senior_tier"
	CapAmend            Capability = "amend"
	CapDeleteAny        Capability = "delete_any"
	CapViewAll          Capability = "view_all"
	CapRunReminders     Capability = "run_reminders"
)

// roleCapabilities is the explicit role-capability table. Senior managers hold
// every manager capability except manager-tier approval, which is granted
// separately by ApprovalPolicy so skip-level approval stays configurable.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleAssessor: {
		CapCreateAssessment: true,
		CapEditOwn:          true,
		CapSubmitOwn:        true,
		CapResubmitOwn:      true,
		CapDeleteOwnDraft:   true,
		CapOverrideOwn:      true,
	},
	RoleManager: {
		CapOverrideAny:    true,
		CapDecide:         true,
		CapApproveManager: true,
		CapAmend:          true,
		CapViewAll:        true,
		CapRunReminders:   true,
	},
	RoleSeniorManager: {
		CapOverrideAny:   true,
		CapDecide:        true,
		CapApproveSenior: true,
		CapAmend:         true,
		CapDeleteAny:     true,
		CapViewAll:       true,
		CapRunReminders:  true,
	},
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// IsApprover reports whether the role can act on the approval queue.
func (r Role) IsApprover() bool {
	return r.Can(CapDecide)
}

// ApprovalPolicy decides which roles may approve which approval tier.
type ApprovalPolicy struct {
	// AllowSeniorSkipLevel lets a senior manager approve an assessment that
	// only needs manager approval.
	AllowSeniorSkipLevel bool
}

// CanApprove reports whether a user with role may approve an assessment that
// is waiting in status.
func (p ApprovalPolicy) CanApprove(role Role, status Status) bool {
	switch status {
	case StatusPendingManager:
		if role.Can(CapApproveManager) {
			return true
		}
		return p.AllowSeniorSkipLevel && role.Can(CapApproveSenior)
	case StatusPendingSenior:
		return role.Can(CapApproveSenior)
	default:
		return false
	}
}

// User is a person known to the workflow.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// Actor is the authenticated user performing a command.
type Actor struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// ActorFromUser builds the actor for an authenticated user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, FullName: u.FullName, Role: u.Role}
}
