package workflow

// Trigger is an action that moves a workflow instance between states
type Trigger string

const (
	// TriggerApprove advances to the next step, or finalizes the instance on the last one
	TriggerApprove Trigger = "APPROVE"
	// TriggerReject ends the instance at whatever step it is on
	TriggerReject Trigger = "REJECT"
	// TriggerCancel is the administrative cancel
	TriggerCancel Trigger = "CANCEL"
	// TriggerReset returns the instance to step 1 for correction
	TriggerReset Trigger = "RESET"
)

func (t Trigger) String() string {
	return string(t)
}
