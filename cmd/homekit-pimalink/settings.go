package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	pimalink "github.com/caarlos0/homekit-pimalink"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

const keyHidden = "pimalink.hidden"

// Settings persists the web user id, the contact details and the panels
// removed from the bridge in a YAML file.
type Settings struct {
	lock sync.Mutex
	v    *viper.Viper
	path string
}

var _ pimalink.Settings = &Settings{}

func OpenSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read settings: %w", err)
		}
		log.Debug("no settings file yet", "path", path)
	}
	return &Settings{v: v, path: path}, nil
}

func (s *Settings) Get(key string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.v.GetString(key)
}

func (s *Settings) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.v.Set(key, value)
	return s.write()
}

// Hidden returns the pair ids of the panels deleted from the bridge.
func (s *Settings) Hidden() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.v.GetStringSlice(keyHidden)
}

// Hide removes a panel from the bridge.
func (s *Settings) Hide(pairID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	hidden := s.v.GetStringSlice(keyHidden)
	if slices.Contains(hidden, pairID) {
		return nil
	}
	s.v.Set(keyHidden, append(hidden, pairID))
	return s.write()
}

// Unhide adds a previously deleted panel back to the bridge.
func (s *Settings) Unhide(pairID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	hidden := slices.Clone(s.v.GetStringSlice(keyHidden))
	i := slices.Index(hidden, pairID)
	if i < 0 {
		return nil
	}
	s.v.Set(keyHidden, slices.Delete(hidden, i, i+1))
	return s.write()
}

func (s *Settings) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("could not create settings dir: %w", err)
	}
	err := s.v.SafeWriteConfigAs(s.path)
	var exists viper.ConfigFileAlreadyExistsError
	if errors.As(err, &exists) {
		err = s.v.WriteConfigAs(s.path)
	}
	if err != nil {
		return fmt.Errorf("could not write settings: %w", err)
	}
	return nil
}
