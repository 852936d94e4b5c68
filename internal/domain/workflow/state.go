package workflow

// State is the overall status of a workflow instance
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StateCancelled  State = "cancelled"
)

// IsTerminal returns true if no decision can move the instance out of this state.
// Cancelled and rejected instances can still be reset by an administrator.
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateCancelled:
		return true
	}
	return false
}

// IsActive reports whether approvals on the instance are still actionable
func (s State) IsActive() bool {
	return s == StatePending || s == StateInProgress
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known instance status
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateInProgress, StateApproved, StateRejected, StateCancelled:
		return true
	}
	return false
}

// ParseState converts a raw status string, returning ErrInvalidState for unknown values
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", ErrInvalidState
	}
	return s, nil
}
