package workflow

import (
	"context"
	"fmt"
	"sync"
)

var (
	lifecycleOnce     sync.Once
	instanceLifecycle StateMachineBuilder
)

type stepPositionKey struct{}

type stepPosition struct {
	current int
	total   int
}

// WithStepPosition records which step of how many the instance is on, for the
// guards that choose between advancing and finalizing on approval
func WithStepPosition(ctx context.Context, current, total int) context.Context {
	return context.WithValue(ctx, stepPositionKey{}, stepPosition{current: current, total: total})
}

func positionFrom(ctx context.Context) (stepPosition, bool) {
	pos, ok := ctx.Value(stepPositionKey{}).(stepPosition)
	return pos, ok && pos.current >= 1 && pos.current <= pos.total
}

func onLastStep(ctx context.Context) bool {
	pos, ok := positionFrom(ctx)
	return ok && pos.current == pos.total
}

func hasNextStep(ctx context.Context) bool {
	pos, ok := positionFrom(ctx)
	return ok && pos.current < pos.total
}

func lifecycle() StateMachineBuilder {
	lifecycleOnce.Do(func() {
		instanceLifecycle = newInstanceLifecycle()
	})
	return instanceLifecycle
}

func newInstanceLifecycle() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, onLastStep).
		PermitIf(TriggerApprove, StateInProgress, hasNextStep).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateInProgress).
		PermitIf(TriggerApprove, StateApproved, onLastStep).
		PermitIf(TriggerApprove, StateInProgress, hasNextStep).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled).
		Permit(TriggerReset, StatePending)

	b.Configure(StateRejected).
		Permit(TriggerReset, StatePending)

	b.Configure(StateCancelled).
		Permit(TriggerReset, StatePending)

	return b
}

// NewInstanceMachine returns the instance lifecycle positioned at the given status.
//
//	pending ──APPROVE (next step)──▶ in_progress ──APPROVE (next step)──▶ in_progress
//	   │                                  │
//	   ├─APPROVE (last step)─▶ approved ◀─┤
//	   ├─REJECT──────────────▶ rejected ◀─┤
//	   └─CANCEL──────────────▶ cancelled◀─┘
//	in_progress | rejected | cancelled ──RESET──▶ pending
func NewInstanceMachine(current State) (StateMachine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, current)
	}
	return lifecycle().Build(current), nil
}

// Transition computes the status reached by firing trigger from current.
// Approvals need the step position on ctx (see WithStepPosition).
func Transition(ctx context.Context, current State, trigger Trigger) (State, error) {
	m, err := NewInstanceMachine(current)
	if err != nil {
		return "", err
	}
	if err := m.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return m.State(), nil
}

// OverrideTrigger maps an administrator's requested status to the trigger that reaches it
func OverrideTrigger(target State) (Trigger, error) {
	switch target {
	case StateCancelled:
		return TriggerCancel, nil
	case StatePending:
		return TriggerReset, nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("status override to %q is not supported", target))
	}
}

// AllowedOverrides lists the statuses an administrator may move an instance to from current
func AllowedOverrides(current State) []State {
	m, err := NewInstanceMachine(current)
	if err != nil {
		return []State{}
	}

	targets := []State{}
	for _, trigger := range m.PermittedTriggers() {
		switch trigger {
		case TriggerCancel:
			targets = append(targets, StateCancelled)
		case TriggerReset:
			targets = append(targets, StatePending)
		}
	}
	return targets
}
