package pimalink

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Settings keys.
const (
	KeyWebUserID = "pimalink.webUserID"
	KeyUserEmail = "pimalink.userEmail"
	KeyUserPhone = "pimalink.userPhone"
)

// Settings is a persistent string key/value store.
type Settings interface {
	Get(key string) string
	Set(key, value string) error
}

// Identity is the web user id: 16 random hex characters identifying this
// installation to the cloud.
type Identity string

// LoadIdentity returns the stored identity, generating and storing one if
// there is none yet. An existing identity is never replaced.
func LoadIdentity(settings Settings) (Identity, error) {
	if id := settings.Get(KeyWebUserID); id != "" {
		return Identity(id), nil
	}
	id, err := newIdentity()
	if err != nil {
		return "", err
	}
	if err := settings.Set(KeyWebUserID, string(id)); err != nil {
		return "", fmt.Errorf("could not store web user id: %w", err)
	}
	log.Info("new web user id generated", "webUserID", id)
	return id, nil
}

func newIdentity() (Identity, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("could not generate web user id: %w", err)
	}
	return Identity(hex.EncodeToString(b)), nil
}

// StoredContactDetails returns the contact details last confirmed by the
// cloud, empty when there are none.
func StoredContactDetails(settings Settings) ContactDetails {
	return ContactDetails{
		Email: settings.Get(KeyUserEmail),
		Phone: settings.Get(KeyUserPhone),
	}
}

// RegisterContactDetails sends the contact details to the cloud and, only
// once the cloud accepted them, stores them.
func RegisterContactDetails(
	ctx context.Context,
	cli *Client,
	settings Settings,
	details ContactDetails,
	lang string,
) error {
	if err := cli.SetWebUserDetails(ctx, details, lang); err != nil {
		return err
	}
	if err := settings.Set(KeyUserEmail, details.Email); err != nil {
		return fmt.Errorf("could not store email: %w", err)
	}
	if err := settings.Set(KeyUserPhone, details.Phone); err != nil {
		return fmt.Errorf("could not store phone: %w", err)
	}
	return nil
}
