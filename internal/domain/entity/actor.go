package entity

// Actor is the identity context of the caller performing an operation
type Actor struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	UniversityID string `json:"university_id,omitempty"`
	CompanyID    string `json:"company_id,omitempty"`
}

// SystemActor is used when background jobs mutate instances
func SystemActor(name string) Actor {
	return Actor{UserID: "system:" + name, Role: RoleSystem}
}

// IsAdmin reports whether the actor holds an administrative role.
// The system actor is treated as an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin() || a.Role == RoleSystem
}
