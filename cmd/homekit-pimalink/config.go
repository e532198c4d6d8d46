package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pimalink "github.com/caarlos0/homekit-pimalink"
	logp "github.com/charmbracelet/log"
)

type Config struct {
	UserCode       string            `env:"USER_CODE"`
	UserCodes      map[string]string `env:"USER_CODES"`
	Locale         string            `env:"LOCALE"          envDefault:"he"`
	Lang           string            `env:"LANG"            envDefault:"en"`
	PollInterval   time.Duration     `env:"POLL_INTERVAL"   envDefault:"5s"`
	RequestTimeout time.Duration     `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	BaseURL        string            `env:"BASE_URL"        envDefault:"https://application.pimalink.com:443"`
	Address        string            `env:"LISTEN"          envDefault:":9009"`
	DB             string            `env:"DB"              envDefault:"./db"`
	Settings       string            `env:"SETTINGS"        envDefault:"./db/pimalink.yaml"`
	MQTTBroker     string            `env:"MQTT_BROKER"`
	MQTTTopic      string            `env:"MQTT_TOPIC"      envDefault:"pimalink"`
	LogLevel       string            `env:"LOG_LEVEL"       envDefault:"info"`
}

// userCode returns the code used to open sessions on the given panel.
func (c Config) userCode(pairID string) (string, error) {
	if code := c.UserCodes[pairID]; code != "" {
		return code, nil
	}
	if c.UserCode != "" {
		return c.UserCode, nil
	}
	return "", fmt.Errorf("no user code for panel %s: set USER_CODE or USER_CODES", pairID)
}

// lang returns the two letter language sent to the config endpoint. LANG is
// often set to a locale like en_US.UTF-8.
func (c Config) lang() string {
	lang := strings.ToLower(c.Lang)
	if i := strings.IndexAny(lang, "_.-@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" || lang == "c" || lang == "posix" {
		return "en"
	}
	return lang
}

func (c Config) phrases() (pimalink.Phrases, error) {
	return pimalink.PhrasesFor(c.Locale)
}

func (c Config) level() (logp.Level, error) {
	return logp.ParseLevel(c.LogLevel)
}

// formatEnvError lists one problem per line, naming the environment
// variable instead of the Config field.
func formatEnvError(err error) string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return strings.TrimPrefix(err.Error(), "env: ") + "\n"
	}
	keys := envKeys()
	var sb strings.Builder
	for _, e := range agg.Errors {
		var perr env.ParseError
		if errors.As(e, &perr) {
			key := keys[perr.Name]
			if key == "" {
				key = perr.Name
			}
			fmt.Fprintf(&sb, "%s: %v\n", key, perr.Err)
			continue
		}
		sb.WriteString(e.Error() + "\n")
	}
	return sb.String()
}

// envKeys maps Config field names to their environment variables.
func envKeys() map[string]string {
	keys := map[string]string{}
	for _, f := range reflect.VisibleFields(reflect.TypeOf(Config{})) {
		if key, _, _ := strings.Cut(f.Tag.Get("env"), ","); key != "" {
			keys[f.Name] = key
		}
	}
	return keys
}
