package pimalink

import (
	"encoding/json"
	"net/http"
	"strings"
)

// osType identifies the kind of client to the cloud.
const osType = "2"

type header struct {
	OSType       string `json:"oSType"`
	WebUserID    string `json:"webUserId"`
	PairEntityID string `json:"pairEntityId,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type envelope struct {
	Data   any    `json:"data"`
	Header header `json:"header"`
}

// makePayload builds an unauthenticated envelope. A nil data is sent as an
// empty object.
func makePayload(webUserID Identity, data any) envelope {
	if data == nil {
		data = struct{}{}
	}
	return envelope{
		Data: data,
		Header: header{
			OSType:    osType,
			WebUserID: string(webUserID),
		},
	}
}

// makePanelPayload builds an envelope scoped to a panel, and to its session
// once there is one.
func makePanelPayload(webUserID Identity, pairID, token string, data any) envelope {
	env := makePayload(webUserID, data)
	env.Header.PairEntityID = pairID
	env.Header.SessionToken = token
	return env
}

type reply struct {
	Path       string
	StatusCode int
	Body       []byte
}

func (r reply) ok() bool        { return r.StatusCode == http.StatusOK }
func (r reply) noContent() bool { return r.StatusCode == http.StatusNoContent }

func (r reply) empty() bool {
	return len(strings.TrimSpace(string(r.Body))) == 0
}

// decode parses the body into v. Only used where a body is required.
func (r reply) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &StateDecodeError{Path: r.Path, Err: err}
	}
	return nil
}

type providerError struct {
	ErrorCode int    `json:"errorCode"`
	ErrorText string `json:"errorText"`
}

// providerError parses the error fields of the body, if any. A body that is
// not a JSON object yields the zero value.
func (r reply) providerError() providerError {
	var perr providerError
	if r.empty() {
		return perr
	}
	if err := json.Unmarshal(r.Body, &perr); err == nil {
		return perr
	}
	// some errors come back as a bare string, quoted or not.
	var text string
	if err := json.Unmarshal(r.Body, &text); err != nil {
		text = strings.TrimSpace(string(r.Body))
	}
	return providerError{ErrorText: text}
}

// hasErrorText matches the provider error text, which comes misspelled as
// "ActionFaild-" from the server.
func (p providerError) hasErrorText(name string) bool {
	return p.ErrorText == "ActionFailed-"+name || p.ErrorText == "ActionFaild-"+name
}

// failure builds the error for a reply outside its success contract.
// Only codes in known are recognised, everything else is undefined.
func (r reply) failure(known map[int]error) error {
	perr := r.providerError()
	if err, ok := known[perr.ErrorCode]; ok && perr.ErrorCode != 0 {
		return &ProtocolError{
			Path:       r.Path,
			StatusCode: r.StatusCode,
			Code:       perr.ErrorCode,
			Text:       perr.ErrorText,
			Err:        err,
		}
	}
	log.Warn("undefined failure", "path", r.Path, "status", r.StatusCode, "body", string(r.Body))
	return &UndefinedProtocolError{
		Path:       r.Path,
		StatusCode: r.StatusCode,
		Body:       string(r.Body),
	}
}
