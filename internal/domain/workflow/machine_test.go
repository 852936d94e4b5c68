package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateInProgress, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
			if got := tt.state.IsActive(); got == tt.expected {
				t.Errorf("State.IsActive() = %v, want %v", got, !tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState("in_progress"); err != nil || s != StateInProgress {
		t.Errorf("ParseState(in_progress) = %v, %v", s, err)
	}
	if _, err := ParseState("IN_PROGRESS"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ParseState(IN_PROGRESS) error = %v, want %v", err, ErrInvalidState)
	}
	if _, err := ParseState(""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ParseState(\"\") error = %v, want %v", err, ErrInvalidState)
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePending)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if config != builder.Configure(StatePending) {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	cases := map[string]func(){
		"configure": func() { NewBuilder().Configure(State("INVALID")) },
		"build":     func() { NewBuilder().Build(State("")) },
		"permit":    func() { NewBuilder().Configure(StatePending).Permit(TriggerApprove, State("nope")) },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", name)
				}
			}()
			fn()
		})
	}
}

func TestBuilder_BuildSnapshotsRules(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateInProgress)

	machine := builder.Build(StatePending)
	builder.Configure(StatePending).Permit(TriggerCancel, StateCancelled)

	if machine.CanFire(TriggerCancel) {
		t.Error("rules added after Build() must not affect built machines")
	}
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	type ctxKey string
	const lastStep ctxKey = "last"

	builder := NewBuilder()
	builder.Configure(StateInProgress).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool {
			return ctx.Value(lastStep) == true
		})

	machine := builder.Build(StateInProgress)
	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateInProgress {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateInProgress, machine.State())
	}

	ctx := context.WithValue(context.Background(), lastStep, true)
	if err := machine.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateApproved {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateApproved)
	}
}

func TestInstanceLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		step    int
		steps   int
		want    State
		wantErr error
	}{
		{"first approval advances", StatePending, TriggerApprove, 1, 2, StateInProgress, nil},
		{"middle approval stays in progress", StateInProgress, TriggerApprove, 2, 3, StateInProgress, nil},
		{"single step approval", StatePending, TriggerApprove, 1, 1, StateApproved, nil},
		{"last step approval", StateInProgress, TriggerApprove, 3, 3, StateApproved, nil},
		{"approval without step position", StatePending, TriggerApprove, 0, 0, "", ErrGuardFailed},
		{"approval beyond last step", StateInProgress, TriggerApprove, 4, 3, "", ErrGuardFailed},
		{"reject at step one", StatePending, TriggerReject, 1, 2, StateRejected, nil},
		{"reject mid chain", StateInProgress, TriggerReject, 2, 3, StateRejected, nil},
		{"cancel pending", StatePending, TriggerCancel, 0, 0, StateCancelled, nil},
		{"cancel in progress", StateInProgress, TriggerCancel, 0, 0, StateCancelled, nil},
		{"reset rejected", StateRejected, TriggerReset, 0, 0, StatePending, nil},
		{"reset cancelled", StateCancelled, TriggerReset, 0, 0, StatePending, nil},
		{"reset in progress", StateInProgress, TriggerReset, 0, 0, StatePending, nil},
		{"approved is final", StateApproved, TriggerReset, 0, 0, "", ErrInvalidTransition},
		{"no decisions after reject", StateRejected, TriggerApprove, 1, 2, "", ErrInvalidTransition},
		{"no cancel after approval", StateApproved, TriggerCancel, 0, 0, "", ErrInvalidTransition},
		{"no approval after cancel", StateCancelled, TriggerApprove, 1, 2, "", ErrInvalidTransition},
		{"reset pending is a no-op request", StatePending, TriggerReset, 0, 0, "", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.steps > 0 {
				ctx = WithStepPosition(ctx, tt.step, tt.steps)
			}
			got, err := Transition(ctx, tt.from, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewInstanceMachine_RejectsUnknownStatus(t *testing.T) {
	if _, err := NewInstanceMachine(State("archived")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewInstanceMachine() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	m, err := NewInstanceMachine(StateInProgress)
	if err != nil {
		t.Fatal(err)
	}

	got := m.PermittedTriggers()
	want := []Trigger{TriggerApprove, TriggerCancel, TriggerReject, TriggerReset}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	terminal, _ := NewInstanceMachine(StateApproved)
	if len(terminal.PermittedTriggers()) != 0 {
		t.Errorf("approved should have no permitted triggers, got %v", terminal.PermittedTriggers())
	}
}

func TestState_IsValidAtPackageLoad(t *testing.T) {
	// the lifecycle rules must be buildable whenever the package is imported
	for _, s := range []State{StatePending, StateInProgress, StateApproved, StateRejected, StateCancelled} {
		if !s.IsValid() {
			t.Errorf("%s.IsValid() = false", s)
		}
		if _, err := NewInstanceMachine(s); err != nil {
			t.Errorf("NewInstanceMachine(%s) failed: %v", s, err)
		}
	}
	if State("archived").IsValid() {
		t.Error("unknown state reported valid")
	}
}

func TestAllowedOverrides(t *testing.T) {
	tests := []struct {
		from State
		want []State
	}{
		{StatePending, []State{StateCancelled}},
		{StateInProgress, []State{StateCancelled, StatePending}},
		{StateRejected, []State{StatePending}},
		{StateCancelled, []State{StatePending}},
		{StateApproved, []State{}},
		{State("archived"), []State{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got := AllowedOverrides(tt.from)
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedOverrides(%s) = %v, want %v", tt.from, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("AllowedOverrides(%s)[%d] = %v, want %v", tt.from, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOverrideTrigger(t *testing.T) {
	if tr, err := OverrideTrigger(StateCancelled); err != nil || tr != TriggerCancel {
		t.Errorf("OverrideTrigger(cancelled) = %v, %v", tr, err)
	}
	if tr, err := OverrideTrigger(StatePending); err != nil || tr != TriggerReset {
		t.Errorf("OverrideTrigger(pending) = %v, %v", tr, err)
	}

	_, err := OverrideTrigger(StateApproved)
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("OverrideTrigger(approved) error = %v, want validation error", err)
	}
	if verr.Fields[0].Field != "status" {
		t.Errorf("field = %q, want status", verr.Fields[0].Field)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("name", "is required").Add("steps", "must be contiguous")
	if !err.HasErrors() {
		t.Fatal("HasErrors() = false")
	}
	want := "validation failed: name: is required; steps: must be contiguous"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
