package models

// Step is the wizard position of a booking session. It is a progress indicator:
// moving back is always allowed as long as the target step's fields are present.
type Step int

const (
	StepService  Step = 1 // pick a service
	StepAddress  Step = 2 // pick or type an address
	StepSchedule Step = 3 // pick a timeslot and contractor
	StepConfirm  Step = 4 // review, pay and confirm
)

// Valid reports whether the step is one of the four wizard steps.
func (s Step) Valid() bool {
	return s >= StepService && s <= StepConfirm
}

// Next returns the step that follows s. The confirm step is terminal.
func (s Step) Next() Step {
	if s >= StepConfirm {
		return StepConfirm
	}
	return s + 1
}

func (s Step) String() string {
	switch s {
	case StepService:
		return "service"
	case StepAddress:
		return "address"
	case StepSchedule:
		return "schedule"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}
