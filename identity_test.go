package pimalink

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSettings struct {
	values map[string]string
	err    error
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]string{}}
}

func (m *memSettings) Get(key string) string { return m.values[key] }

func (m *memSettings) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestLoadIdentity(t *testing.T) {
	t.Run("generates", func(t *testing.T) {
		settings := newMemSettings()
		id, err := LoadIdentity(settings)
		require.NoError(t, err)
		require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), string(id))
		require.Equal(t, string(id), settings.Get(KeyWebUserID))
	})

	t.Run("idempotent", func(t *testing.T) {
		settings := newMemSettings()
		first, err := LoadIdentity(settings)
		require.NoError(t, err)
		second, err := LoadIdentity(settings)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("never overwrites", func(t *testing.T) {
		settings := newMemSettings()
		settings.values[KeyWebUserID] = "fedcba9876543210"
		settings.err = errors.New("read only")
		id, err := LoadIdentity(settings)
		require.NoError(t, err)
		require.Equal(t, Identity("fedcba9876543210"), id)
	})

	t.Run("store failure", func(t *testing.T) {
		settings := newMemSettings()
		settings.err = errors.New("disk full")
		_, err := LoadIdentity(settings)
		require.ErrorContains(t, err, "disk full")
	})

	t.Run("random", func(t *testing.T) {
		a, err := newIdentity()
		require.NoError(t, err)
		b, err := newIdentity()
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestRegisterContactDetails(t *testing.T) {
	details := ContactDetails{Email: "me@example.com", Phone: "123"}

	t.Run("stored after 204", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathSetWebUserDetails, http.StatusNoContent, ``)
		settings := newMemSettings()

		require.NoError(t, RegisterContactDetails(context.Background(), cloud.client(), settings, details, "en"))
		require.Equal(t, ContactDetails{Email: "me@example.com", Phone: "123"}, StoredContactDetails(settings))
	})

	t.Run("stored after retry", func(t *testing.T) {
		cloud := newFakeCloud(t)
		var attempts atomic.Int32
		cloud.handleFunc(pathSetWebUserDetails, func(w http.ResponseWriter, _ *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"errorText":"ActionFaild-InvalidWebUserID"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		cloud.handle(pathConfig+"en", http.StatusOK, ``)
		settings := newMemSettings()

		require.NoError(t, RegisterContactDetails(context.Background(), cloud.client(), settings, details, "en"))
		require.Len(t, cloud.callsTo(pathConfig+"en"), 1)
		require.Len(t, cloud.callsTo(pathSetWebUserDetails), 2)
		require.Equal(t, "me@example.com", settings.Get(KeyUserEmail))
	})

	t.Run("not stored on failure", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathSetWebUserDetails, http.StatusBadRequest, `{"errorText":"ActionFailed-InvalidWebUserID"}`)
		cloud.handle(pathConfig+"en", http.StatusOK, ``)
		settings := newMemSettings()
		settings.values[KeyUserEmail] = "old@example.com"

		require.Error(t, RegisterContactDetails(context.Background(), cloud.client(), settings, details, "en"))
		require.Equal(t, ContactDetails{Email: "old@example.com"}, StoredContactDetails(settings))
	})
}
