package pimalink

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUserCode = errors.New("invalid user code")
	ErrPanelBusy       = errors.New("panel is busy")
	ErrPanelInSession  = errors.New("panel is already in a session")
	ErrNoPairEntities  = errors.New("no panels paired to this web user")
	ErrUnknownState    = errors.New("unknown alarm state")
)

// TransportError means there is no server-confirmed outcome: the request
// never got a response (dns, connect, tls, reset, timeout, bad request).
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failed: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a response outside the operation's success contract
// carrying an error code or text we know about.
type ProtocolError struct {
	Path       string
	StatusCode int
	Code       int
	Text       string
	Err        error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Path, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (errorCode=%d)", e.Code)
	}
	if e.Text != "" {
		msg += fmt.Sprintf(" (errorText=%s)", e.Text)
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// UndefinedProtocolError is a failed response with nothing we recognise in
// it. Body is kept verbatim for diagnosis.
type UndefinedProtocolError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *UndefinedProtocolError) Error() string {
	return fmt.Sprintf("%s: undefined failure: status %d: %q", e.Path, e.StatusCode, e.Body)
}

// StateDecodeError is a body that is not the JSON the operation requires.
type StateDecodeError struct {
	Path string
	Err  error
}

func (e *StateDecodeError) Error() string {
	return fmt.Sprintf("%s: could not decode response: %v", e.Path, e.Err)
}

func (e *StateDecodeError) Unwrap() error { return e.Err }

// UserMessage returns a short message fit to show a user after a failed
// command.
func UserMessage(err error) string {
	var terr *TransportError
	var uerr *UndefinedProtocolError
	var derr *StateDecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidUserCode):
		return "Invalid user code"
	case errors.Is(err, ErrPanelBusy):
		return "The panel is busy, try again later"
	case errors.Is(err, ErrPanelInSession):
		return "The panel is in use by another client"
	case errors.Is(err, ErrUnknownState):
		return "Unsupported alarm state"
	case errors.As(err, &terr):
		return "Could not reach the PIMA cloud"
	case errors.As(err, &uerr), errors.As(err, &derr):
		return "Unexpected response from the panel"
	default:
		return "Command failed"
	}
}
