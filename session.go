package pimalink

import (
	"context"
	"errors"
)

var authErrors = map[int]error{
	45: ErrInvalidUserCode,
	24: ErrPanelBusy,
	21: ErrPanelInSession,
}

// Session is an authenticated context on one panel. It lives for the
// duration of a single WithSession call and is never reused.
type Session struct {
	cli    *Client
	pairID string
	token  string
}

// Token returns the session token issued by the panel.
func (s *Session) Token() string { return s.token }

// WithSession authenticates on the panel, runs fn and disconnects.
//
// If authentication fails, fn is not called and there is nothing to
// disconnect. Otherwise the session is always disconnected, whatever fn
// returns; a failed disconnect is only logged.
func (c *Client) WithSession(
	ctx context.Context,
	pairID, userCode string,
	fn func(ctx context.Context, s *Session) error,
) error {
	s, err := c.authenticate(ctx, pairID, userCode)
	if err != nil {
		return err
	}
	defer s.disconnect(context.WithoutCancel(ctx))
	return fn(ctx, s)
}

func (c *Client) authenticate(ctx context.Context, pairID, userCode string) (*Session, error) {
	log.Debug("authenticate", "pair", pairID)
	r, err := c.post(ctx, pathAuthenticate, makePanelPayload(c.webUserID, pairID, "", userCode))
	if err != nil {
		return nil, err
	}
	if !r.ok() {
		return nil, r.failure(authErrors)
	}

	var result struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	if result.SessionToken == "" {
		return nil, &StateDecodeError{
			Path: r.Path,
			Err:  errors.New("no session token in response"),
		}
	}
	return &Session{
		cli:    c,
		pairID: pairID,
		token:  result.SessionToken,
	}, nil
}

// SetGeneralStatus arms, partially arms or disarms the panel.
func (s *Session) SetGeneralStatus(ctx context.Context, state AlarmState) error {
	code, err := state.generalStatus()
	if err != nil {
		return err
	}
	log.Debug("set general status", "pair", s.pairID, "state", state, "code", code)
	r, err := s.cli.post(ctx, pathSetGeneralStatus, s.payload(code))
	if err != nil {
		return err
	}
	if !r.ok() {
		return r.failure(authErrors)
	}
	return nil
}

func (s *Session) disconnect(ctx context.Context) {
	log.Debug("disconnect", "pair", s.pairID)
	r, err := s.cli.post(ctx, pathDisconnect, s.payload(nil))
	if err != nil {
		log.Warn("could not disconnect", "pair", s.pairID, "err", err)
		return
	}
	if !r.ok() && !r.noContent() {
		log.Warn("could not disconnect", "pair", s.pairID, "status", r.StatusCode, "body", string(r.Body))
	}
}

func (s *Session) payload(data any) envelope {
	return makePanelPayload(s.cli.webUserID, s.pairID, s.token, data)
}
