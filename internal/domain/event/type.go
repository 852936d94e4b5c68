package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceCreated   Type = "instance.created"
	TypeInstanceAdvanced  Type = "instance.advanced"
	TypeInstanceApproved  Type = "instance.approved"
	TypeInstanceRejected  Type = "instance.rejected"
	TypeInstanceCancelled Type = "instance.cancelled"
	TypeInstanceReset     Type = "instance.reset"
	TypeApprovalApproved  Type = "approval.approved"
	TypeApprovalRejected  Type = "approval.rejected"
	TypeApprovalCommented Type = "approval.commented"
)

// AllTypes lists every event type in a stable order
var AllTypes = []Type{
	TypeInstanceCreated,
	TypeInstanceAdvanced,
	TypeInstanceApproved,
	TypeInstanceRejected,
	TypeInstanceCancelled,
	TypeInstanceReset,
	TypeApprovalApproved,
	TypeApprovalRejected,
	TypeApprovalCommented,
}

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}
