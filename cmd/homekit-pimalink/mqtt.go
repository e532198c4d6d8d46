package main

import (
	"fmt"
	"net/url"
	"time"

	pimalink "github.com/caarlos0/homekit-pimalink"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Publisher interface {
	Publish(pairID string, state pimalink.AlarmState) error
}

// Mirror publishes panel states, retained, to an MQTT broker.
type Mirror struct {
	cli   mqtt.Client
	topic string
}

func NewMirror(brokerURL, topic string) (*Mirror, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mqtt broker: %w", err)
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerServer(u))
	opts.SetClientID("homekit-pimalink-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) { log.Info("mqtt connected", "broker", u.Host) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { log.Error("mqtt connection lost", "err", err) }
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}

	cli := mqtt.NewClient(opts)
	if t := cli.Connect(); !t.WaitTimeout(10*time.Second) || t.Error() != nil {
		return nil, fmt.Errorf("could not connect to mqtt broker: %v", t.Error())
	}
	return &Mirror{cli: cli, topic: topic}, nil
}

func (m *Mirror) Publish(pairID string, state pimalink.AlarmState) error {
	t := m.cli.Publish(stateTopic(m.topic, pairID), 1, true, string(state))
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (m *Mirror) Close() {
	m.cli.Disconnect(250)
}

func stateTopic(prefix, pairID string) string {
	return prefix + "/" + pairID + "/state"
}

func brokerServer(u *url.URL) string {
	switch u.Scheme {
	case "ssl", "tls", "mqtts":
		return "ssl://" + u.Host
	case "ws", "wss":
		return u.Scheme + "://" + u.Host + u.Path
	default:
		return "tcp://" + u.Host
	}
}

// mirrored publishes every state change of a panel.
type mirrored struct {
	pimalink.Capability
	pairID    string
	publisher Publisher
}

func (m mirrored) SetValue(state pimalink.AlarmState) error {
	if err := m.Capability.SetValue(state); err != nil {
		return err
	}
	if err := m.publisher.Publish(m.pairID, state); err != nil {
		log.Warn("could not publish state", "pair", m.pairID, "state", state, "err", err)
	}
	return nil
}
