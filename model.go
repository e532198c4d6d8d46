package pimalink

import "fmt"

// AlarmState is the state of a panel as shown to the user.
type AlarmState string

const (
	StateUnknown        AlarmState = ""
	StateArmed          AlarmState = "armed"
	StateDisarmed       AlarmState = "disarmed"
	StatePartiallyArmed AlarmState = "partially_armed"
)

func (s AlarmState) String() string {
	switch s {
	case StateArmed:
		return "Armed"
	case StateDisarmed:
		return "Disarmed"
	case StatePartiallyArmed:
		return "Partially Armed"
	default:
		return "Unknown"
	}
}

// ParseAlarmState accepts the capability values armed, disarmed and
// partially_armed.
func ParseAlarmState(s string) (AlarmState, error) {
	switch st := AlarmState(s); st {
	case StateArmed, StateDisarmed, StatePartiallyArmed:
		return st, nil
	default:
		return StateUnknown, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// generalStatus is the numeric code SetGeneralStatus expects.
func (s AlarmState) generalStatus() (int, error) {
	switch s {
	case StateDisarmed:
		return 0, nil
	case StateArmed:
		return 1, nil
	case StatePartiallyArmed:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownState, string(s))
	}
}

// PairEntity is a remote panel bound to this installation's web user id.
type PairEntity struct {
	PairID string `json:"pairId"`
	Name   string `json:"name"`
}

// Notification is one entry of the panel's event feed.
type Notification struct {
	Message string `json:"message"`
}

// ContactDetails are the email and phone registered for the web user.
type ContactDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
