package pimalink

import (
	"context"
	"errors"
	"fmt"
)

// DefaultContactName is the name registered with the contact details.
const DefaultContactName = "HomeKit"

// SetWebUserDetails registers the contact details of the web user.
//
// A web user the cloud does not know yet is bootstrapped through the config
// endpoint, after which the call is retried exactly once.
func (c *Client) SetWebUserDetails(ctx context.Context, details ContactDetails, lang string) error {
	if details.Name == "" {
		details.Name = DefaultContactName
	}

	r, err := c.post(ctx, pathSetWebUserDetails, makePayload(c.webUserID, details))
	if err != nil {
		return fmt.Errorf("could not set web user details: %w", err)
	}
	if r.providerError().hasErrorText("InvalidWebUserID") {
		log.Info("web user unknown to the cloud, bootstrapping it", "webUserID", c.webUserID)
		if err := c.Config(ctx, lang); err != nil {
			log.Warn("could not bootstrap web user", "err", err)
		}
		r, err = c.post(ctx, pathSetWebUserDetails, makePayload(c.webUserID, details))
		if err != nil {
			return fmt.Errorf("could not set web user details: %w", err)
		}
	}
	if !r.noContent() {
		return fmt.Errorf("could not set web user details: %w", r.failure(nil))
	}
	return nil
}

// Config bootstraps the web user on the cloud for the given language.
func (c *Client) Config(ctx context.Context, lang string) error {
	if lang == "" {
		lang = "en"
	}
	r, err := c.post(ctx, pathConfig+lang, makePayload(c.webUserID, nil))
	if err != nil {
		return fmt.Errorf("could not get config: %w", err)
	}
	if !r.ok() && !r.noContent() {
		return fmt.Errorf("could not get config: %w", r.failure(nil))
	}
	return nil
}

// Pair binds the panel with the given pairing code to the web user. Pairing
// a panel that is already paired succeeds.
func (c *Client) Pair(ctx context.Context, name, pairingCode string) error {
	r, err := c.post(ctx, pathPair, makePayload(c.webUserID, map[string]string{
		"name":        name,
		"pairingCode": pairingCode,
	}))
	if err != nil {
		return fmt.Errorf("could not pair %q: %w", name, err)
	}
	if r.noContent() {
		return nil
	}
	if r.providerError().hasErrorText("PairingAlreadyExist") {
		log.Info("panel already paired", "name", name)
		return nil
	}
	return fmt.Errorf("could not pair %q: %w", name, r.failure(nil))
}

// PairEntities lists the panels paired to the web user. When the cloud has
// none yet it returns ErrNoPairEntities: the user should go back and pair
// one, rather than see an empty list.
func (c *Client) PairEntities(ctx context.Context) ([]PairEntity, error) {
	r, err := c.post(ctx, pathGetPairEntities, makePayload(c.webUserID, nil))
	if err != nil {
		return nil, fmt.Errorf("could not list panels: %w", err)
	}
	if !r.ok() {
		return nil, fmt.Errorf("could not list panels: %w", r.failure(nil))
	}

	var entities []PairEntity
	if err := r.decode(&entities); err != nil {
		return nil, fmt.Errorf("could not list panels: %w", err)
	}
	if entities == nil {
		return nil, ErrNoPairEntities
	}
	return entities, nil
}

// UnPair removes the panel from the web user.
func (c *Client) UnPair(ctx context.Context, pairID string) error {
	r, err := c.post(ctx, pathUnPair, makePayload(c.webUserID, pairID))
	if err != nil {
		return fmt.Errorf("could not unpair %s: %w", pairID, err)
	}
	if !r.noContent() {
		return fmt.Errorf("could not unpair %s: %w", pairID, r.failure(nil))
	}
	return nil
}

// Notifications fetches the event feed of a panel, newest first. It does
// not need a panel session. A failed response or an empty body yields no
// notifications and an error.
func (c *Client) Notifications(ctx context.Context, pairID string) ([]Notification, error) {
	r, err := c.post(ctx, pathGetNotifications, makePanelPayload(c.webUserID, pairID, "", nil))
	if err != nil {
		return nil, fmt.Errorf("could not get notifications: %w", err)
	}
	if !r.ok() {
		return nil, fmt.Errorf("could not get notifications: %w", r.failure(nil))
	}
	if r.empty() {
		return nil, fmt.Errorf("could not get notifications: %w", &StateDecodeError{
			Path: r.Path,
			Err:  errEmptyBody,
		})
	}

	var events []Notification
	if err := r.decode(&events); err != nil {
		return nil, fmt.Errorf("could not get notifications: %w", err)
	}
	return events, nil
}

var errEmptyBody = errors.New("empty body")
