package permission

import "github.com/garyjia/internflow/internal/domain/entity"

// Capability is an action a subject may perform on an approval
type Capability string

const (
	CapabilityApprove Capability = "approve"
	CapabilityReject  Capability = "reject"
	CapabilityComment Capability = "comment"
)

// Set is the collection of capabilities granted on one approval
type Set map[Capability]bool

// Has reports whether c was granted
func (s Set) Has(c Capability) bool {
	return s[c]
}

// Subject is the caller whose capabilities are resolved
type Subject struct {
	UserID string
	Role   entity.Role
}

// Target describes the approval being acted on
type Target struct {
	RequiredRole   entity.Role
	ApprovalStatus entity.ApprovalStatus
	SubmitterID    string
}

// Policy resolves which capabilities a subject holds on a target
type Policy interface {
	Capabilities(subject Subject, target Target) Set
}

// PolicyFunc adapts a function to Policy
type PolicyFunc func(subject Subject, target Target) Set

func (f PolicyFunc) Capabilities(subject Subject, target Target) Set {
	return f(subject, target)
}

// RolePolicy grants capabilities by matching the subject role to the step role.
//
// Approve and reject need a role match and a pending approval; administrators may
// decide any pending approval. Comment needs a role match, the submitter, or an
// administrator, and does not depend on approval status.
type RolePolicy struct{}

// NewRolePolicy returns the default policy
func NewRolePolicy() Policy {
	return RolePolicy{}
}

func (RolePolicy) Capabilities(subject Subject, target Target) Set {
	set := Set{}
	if subject.Role == "" {
		return set
	}

	roleMatch := subject.Role == target.RequiredRole
	admin := subject.Role.IsAdmin() || subject.Role == entity.RoleSystem

	if target.ApprovalStatus == entity.ApprovalStatusPending && (roleMatch || admin) {
		set[CapabilityApprove] = true
		set[CapabilityReject] = true
	}

	submitter := subject.UserID != "" && subject.UserID == target.SubmitterID
	if roleMatch || submitter || admin {
		set[CapabilityComment] = true
	}
	return set
}

// Permissions is the caller-facing view of a capability set
type Permissions struct {
	CanApprove bool `json:"canApprove"`
	CanReject  bool `json:"canReject"`
	CanComment bool `json:"canComment"`
}

// ToPermissions flattens a capability set
func (s Set) ToPermissions() Permissions {
	return Permissions{
		CanApprove: s.Has(CapabilityApprove),
		CanReject:  s.Has(CapabilityReject),
		CanComment: s.Has(CapabilityComment),
	}
}
