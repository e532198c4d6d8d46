package pimalink

import "strings"

// Reduce returns the state of the first notification that matches one of
// the phrases. The feed comes newest first, so the first match is the
// current state. No match yields StateUnknown, which callers must not
// write over a known state.
func (p Phrases) Reduce(events []Notification) AlarmState {
	for _, evt := range events {
		if state := p.match(evt.Message); state != StateUnknown {
			return state
		}
	}
	return StateUnknown
}

func (p Phrases) match(msg string) AlarmState {
	switch {
	case p.Armed != "" && strings.Contains(msg, p.Armed):
		return StateArmed
	case p.PartiallyArmed != "" && strings.Contains(msg, p.PartiallyArmed):
		return StatePartiallyArmed
	case p.Disarmed != "" && strings.Contains(msg, p.Disarmed):
		return StateDisarmed
	default:
		return StateUnknown
	}
}
