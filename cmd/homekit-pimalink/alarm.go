package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	pimalink "github.com/caarlos0/homekit-pimalink"
)

// Commander changes the state of a panel.
type Commander interface {
	SetState(ctx context.Context, target pimalink.AlarmState) error
}

// SecuritySystem exposes one paired panel to HomeKit.
type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem

	pairID  string
	timeout time.Duration
	command Commander

	lock  sync.Mutex
	state pimalink.AlarmState
}

var _ pimalink.Capability = &SecuritySystem{}

func NewSecuritySystem(info accessory.Info, pairID string, timeout time.Duration) *SecuritySystem {
	a := &SecuritySystem{
		pairID:  pairID,
		timeout: timeout,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	// the panel has a single partial mode, shown as stay.
	a.SecuritySystem.SecuritySystemTargetState.ValidVals = []int{
		characteristic.SecuritySystemTargetStateStayArm,
		characteristic.SecuritySystemTargetStateAwayArm,
		characteristic.SecuritySystemTargetStateDisarm,
	}
	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

// Bind sets where target state changes are sent to.
func (a *SecuritySystem) Bind(command Commander) {
	a.command = command
}

// Value returns the last state set, unknown until the first poll or command.
func (a *SecuritySystem) Value() pimalink.AlarmState {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.state
}

// SetValue sets both the current and the target state, so the Home app
// does not show a pending change when the panel was operated elsewhere.
func (a *SecuritySystem) SetValue(state pimalink.AlarmState) error {
	current, ok := currentState(state)
	if !ok {
		return pimalink.ErrUnknownState
	}

	a.lock.Lock()
	a.state = state
	a.lock.Unlock()

	armStateGauge.WithLabelValues(a.pairID).Set(float64(current))
	if err := a.SecuritySystem.SecuritySystemCurrentState.SetValue(current); err != nil {
		return err
	}
	return a.SecuritySystem.SecuritySystemTargetState.SetValue(current)
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	_ *http.Request,
) (response interface{}, code int) {
	n, _ := v.(int)
	if n == characteristic.SecuritySystemTargetStateNightArm {
		return nil, hap.JsonStatusInvalidValueInRequest
	}
	target, ok := targetState(n)
	if !ok {
		return nil, hap.JsonStatusResourceDoesNotExist
	}
	if a.command == nil {
		return nil, hap.JsonStatusServiceCommunicationFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	log.Info("set target state", "pair", a.pairID, "state", target)
	err := a.command.SetState(ctx, target)
	commandCounter.WithLabelValues(a.pairID, string(target), outcome(err)).Inc()
	if err != nil {
		log.Error(
			"could not set state",
			"pair", a.pairID,
			"state", target,
			"msg", pimalink.UserMessage(err),
			"err", err,
		)
		return nil, statusFor(err)
	}
	return nil, hap.JsonStatusSuccess
}

func currentState(state pimalink.AlarmState) (int, bool) {
	switch state {
	case pimalink.StateArmed:
		return characteristic.SecuritySystemCurrentStateAwayArm, true
	case pimalink.StatePartiallyArmed:
		return characteristic.SecuritySystemCurrentStateStayArm, true
	case pimalink.StateDisarmed:
		return characteristic.SecuritySystemCurrentStateDisarmed, true
	default:
		return -1, false
	}
}

// targetState maps a HomeKit target. Night has no panel counterpart: once
// confirmed, the target would be left as night while the current state
// reads stay.
func targetState(v int) (pimalink.AlarmState, bool) {
	switch v {
	case characteristic.SecuritySystemTargetStateAwayArm:
		return pimalink.StateArmed, true
	case characteristic.SecuritySystemTargetStateStayArm:
		return pimalink.StatePartiallyArmed, true
	case characteristic.SecuritySystemTargetStateDisarm:
		return pimalink.StateDisarmed, true
	default:
		return pimalink.StateUnknown, false
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pimalink.ErrInvalidUserCode):
		return hap.JsonStatusInsufficientPrivileges
	case errors.Is(err, pimalink.ErrPanelBusy),
		errors.Is(err, pimalink.ErrPanelInSession):
		return hap.JsonStatusResourceBusy
	case errors.Is(err, pimalink.ErrUnknownState):
		return hap.JsonStatusInvalidValueInRequest
	case errors.Is(err, context.DeadlineExceeded):
		return hap.JsonStatusOperationTimedOut
	default:
		return hap.JsonStatusServiceCommunicationFailure
	}
}
