package main

import (
	"errors"
	"net/url"
	"testing"

	pimalink "github.com/caarlos0/homekit-pimalink"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) Publish(pairID string, state pimalink.AlarmState) error {
	f.published = append(f.published, stateTopic("pimalink", pairID)+"="+string(state))
	return f.err
}

type fakeCapability struct {
	value pimalink.AlarmState
	err   error
}

func (f *fakeCapability) Value() pimalink.AlarmState { return f.value }

func (f *fakeCapability) SetValue(v pimalink.AlarmState) error {
	if f.err != nil {
		return f.err
	}
	f.value = v
	return nil
}

func TestMirrored(t *testing.T) {
	t.Run("publishes", func(t *testing.T) {
		publisher := &fakePublisher{}
		capability := mirrored{Capability: &fakeCapability{}, pairID: "p1", publisher: publisher}

		require.NoError(t, capability.SetValue(pimalink.StateArmed))
		require.Equal(t, pimalink.StateArmed, capability.Value())
		require.Equal(t, []string{"pimalink/p1/state=armed"}, publisher.published)
	})

	t.Run("nothing published when set fails", func(t *testing.T) {
		publisher := &fakePublisher{}
		capability := mirrored{Capability: &fakeCapability{err: errors.New("nope")}, pairID: "p1", publisher: publisher}

		require.Error(t, capability.SetValue(pimalink.StateArmed))
		require.Empty(t, publisher.published)
	})

	t.Run("publish failure is not fatal", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker down")}
		capability := mirrored{Capability: &fakeCapability{}, pairID: "p1", publisher: publisher}

		require.NoError(t, capability.SetValue(pimalink.StateDisarmed))
		require.Equal(t, pimalink.StateDisarmed, capability.Value())
	})
}

func TestBrokerServer(t *testing.T) {
	for broker, expect := range map[string]string{
		"mqtt://localhost:1883":     "tcp://localhost:1883",
		"tcp://user:pw@broker:1883": "tcp://broker:1883",
		"ssl://broker:8883":         "ssl://broker:8883",
		"mqtts://broker:8883":       "ssl://broker:8883",
		"wss://broker:443/mqtt":     "wss://broker:443/mqtt",
		"ws://broker:9001/mqtt":     "ws://broker:9001/mqtt",
	} {
		t.Run(broker, func(t *testing.T) {
			u, err := url.Parse(broker)
			require.NoError(t, err)
			require.Equal(t, expect, brokerServer(u))
		})
	}
}
