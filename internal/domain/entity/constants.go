package entity

// ResourceType tags the kind of record a workflow tracks
type ResourceType string

const (
	ResourceTypeInternship ResourceType = "internship"
	ResourceTypeResume     ResourceType = "resume"
)

// IsValid returns true for the resource types workflows can be defined for
func (t ResourceType) IsValid() bool {
	return t == ResourceTypeInternship || t == ResourceTypeResume
}

func (t ResourceType) String() string {
	return string(t)
}

// Workflow definition activation status
const (
	DefinitionStatusActive   = "active"
	DefinitionStatusInactive = "inactive"
)

// ApprovalStatus is the decision state of a single approval row
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusApproved  ApprovalStatus = "approved"
	ApprovalStatusRejected  ApprovalStatus = "rejected"
	// ApprovalStatusCancelled marks a pending approval withdrawn by an administrative cancel or reset
	ApprovalStatusCancelled ApprovalStatus = "cancelled"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

// HistoryAction tags one row of the audit trail
type HistoryAction string

const (
	HistoryActionCreated   HistoryAction = "created"
	HistoryActionApproved  HistoryAction = "approved"
	HistoryActionRejected  HistoryAction = "rejected"
	HistoryActionCommented HistoryAction = "commented"
	HistoryActionCancelled HistoryAction = "cancelled"
	HistoryActionReset     HistoryAction = "reset"
)

// Role is the application role carried by the caller's identity
type Role string

const (
	RoleStudent    Role = "student"
	RoleCompany    Role = "company"
	RoleUniversity Role = "university"
	RoleDirector   Role = "director"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	// RoleSystem is used by background jobs acting without a user
	RoleSystem Role = "system"
)

var knownRoles = map[Role]bool{
	RoleStudent:    true,
	RoleCompany:    true,
	RoleUniversity: true,
	RoleDirector:   true,
	RoleAdmin:      true,
	RoleSuperAdmin: true,
	RoleSystem:     true,
}

// IsValid returns true for roles the application knows about
func (r Role) IsValid() bool {
	return knownRoles[r]
}

// IsAdmin is true for admin and super_admin
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}
