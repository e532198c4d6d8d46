package pimalink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCapability struct {
	lock   sync.Mutex
	value  AlarmState
	writes []AlarmState
	err    error
}

func (f *fakeCapability) Value() AlarmState {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.value
}

func (f *fakeCapability) SetValue(v AlarmState) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.writes = append(f.writes, v)
	if f.err != nil {
		return f.err
	}
	f.value = v
	return nil
}

func (f *fakeCapability) Writes() []AlarmState {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]AlarmState(nil), f.writes...)
}

func newTestPanel(t *testing.T, cloud *fakeCloud, state Capability, options ...PanelOption) *Panel {
	t.Helper()
	phrases, err := PhrasesFor("en")
	require.NoError(t, err)
	return NewPanel(cloud.client(), PairEntity{PairID: "p1", Name: "Home"}, "1234", phrases, state, options...)
}

func TestPanelPoll(t *testing.T) {
	t.Run("updates on change only", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Full Arm by user 1"}]`)
		state := &fakeCapability{value: StateDisarmed}
		p := newTestPanel(t, cloud, state)

		p.Poll(context.Background())
		p.Poll(context.Background())
		require.Equal(t, StateArmed, state.Value())
		require.Equal(t, []AlarmState{StateArmed}, state.Writes())
	})

	t.Run("unknown never overwrites", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Zone 1 open"}]`)
		state := &fakeCapability{value: StatePartiallyArmed}
		p := newTestPanel(t, cloud, state)

		p.Poll(context.Background())
		require.Equal(t, StatePartiallyArmed, state.Value())
		require.Empty(t, state.Writes())
	})

	for name, tt := range map[string]struct {
		status int
		body   string
	}{
		"error status": {http.StatusInternalServerError, `boom`},
		"empty body":   {http.StatusOK, ``},
		"bad body":     {http.StatusOK, `{"message":"Disarm"}`},
	} {
		t.Run(name+" leaves state alone", func(t *testing.T) {
			cloud := newFakeCloud(t)
			cloud.handle(pathGetNotifications, tt.status, tt.body)
			state := &fakeCapability{value: StateArmed}
			var polled error
			p := newTestPanel(t, cloud, state, WithPollHook(func(s AlarmState, err error) {
				require.Equal(t, StateUnknown, s)
				polled = err
			}))

			p.Poll(context.Background())
			require.Error(t, polled)
			require.Equal(t, StateArmed, state.Value())
			require.Empty(t, state.Writes())
		})
	}

	t.Run("hook gets the reduced state", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Disarm"}]`)
		var got []AlarmState
		p := newTestPanel(t, cloud, &fakeCapability{}, WithPollHook(func(s AlarmState, err error) {
			require.NoError(t, err)
			got = append(got, s)
		}))

		p.Poll(context.Background())
		require.Equal(t, []AlarmState{StateDisarmed}, got)
	})

	t.Run("stopped panel discards the result", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Disarm"}]`)
		state := &fakeCapability{value: StateArmed}
		p := newTestPanel(t, cloud, state, WithPollHook(func(AlarmState, error) {
			t.Fatal("hook should not be called")
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p.Poll(ctx)
		require.Len(t, cloud.callsTo(pathGetNotifications), 1)
		require.Equal(t, StateArmed, state.Value())
	})

	t.Run("capability write failure is not fatal", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Disarm"}]`)
		state := &fakeCapability{value: StateArmed, err: errors.New("nope")}
		p := newTestPanel(t, cloud, state)

		p.Poll(context.Background())
		require.Equal(t, []AlarmState{StateDisarmed}, state.Writes())
	})
}

func TestPanelStartStop(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.handle(pathGetNotifications, http.StatusOK, `[{"message":"Home Arm"}]`)
	state := &fakeCapability{value: StateDisarmed}
	p := newTestPanel(t, cloud, state, WithPollInterval(5*time.Millisecond))

	p.Start(context.Background())
	require.Eventually(t, func() bool { return len(cloud.callsTo(pathGetNotifications)) >= 2 }, time.Second, time.Millisecond)
	p.Stop()
	require.Eventually(t, func() bool { return !p.poller.Polling() }, time.Second, time.Millisecond)
	require.Equal(t, StatePartiallyArmed, state.Value())
	require.Equal(t, []AlarmState{StatePartiallyArmed}, state.Writes())

	stopped := len(cloud.callsTo(pathGetNotifications))
	time.Sleep(30 * time.Millisecond)
	require.Len(t, cloud.callsTo(pathGetNotifications), stopped)
}

func TestPanelSetState(t *testing.T) {
	t.Run("success updates after confirmation", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathAuthenticate, http.StatusOK, `{"sessionToken":"tkn"}`)
		cloud.handle(pathSetGeneralStatus, http.StatusOK, ``)
		cloud.handle(pathDisconnect, http.StatusOK, ``)
		state := &fakeCapability{value: StateDisarmed}
		p := newTestPanel(t, cloud, state)

		require.NoError(t, p.SetState(context.Background(), StatePartiallyArmed))
		require.Equal(t, StatePartiallyArmed, state.Value())
		require.Equal(t, []string{pathAuthenticate, pathSetGeneralStatus, pathDisconnect}, cloud.paths())
		require.JSONEq(t, `"1234"`, string(cloud.callsTo(pathAuthenticate)[0].Data))
	})

	t.Run("failure leaves state alone", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathAuthenticate, http.StatusBadRequest, `{"errorCode":45}`)
		state := &fakeCapability{value: StateDisarmed}
		p := newTestPanel(t, cloud, state)

		err := p.SetState(context.Background(), StateArmed)
		require.ErrorIs(t, err, ErrInvalidUserCode)
		require.ErrorContains(t, err, `"Home"`)
		require.Equal(t, StateDisarmed, state.Value())
		require.Empty(t, state.Writes())
	})

	t.Run("unknown target is rejected", func(t *testing.T) {
		cloud := newFakeCloud(t)
		p := newTestPanel(t, cloud, &fakeCapability{})

		require.ErrorIs(t, p.SetState(context.Background(), StateUnknown), ErrUnknownState)
		require.ErrorIs(t, p.SetState(context.Background(), AlarmState("bogus")), ErrUnknownState)
		require.Empty(t, cloud.paths())
	})

	t.Run("same value is not rewritten", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathAuthenticate, http.StatusOK, `{"sessionToken":"tkn"}`)
		cloud.handle(pathSetGeneralStatus, http.StatusOK, ``)
		cloud.handle(pathDisconnect, http.StatusOK, ``)
		state := &fakeCapability{value: StateArmed}
		p := newTestPanel(t, cloud, state)

		require.NoError(t, p.SetState(context.Background(), StateArmed))
		require.Empty(t, state.Writes())
	})
}

func TestPanelPollCommandRace(t *testing.T) {
	// a poll that read the feed before the command landed overwrites the
	// command's result: last writer wins.
	cloud := newFakeCloud(t)
	feed := make(chan struct{})
	read := make(chan struct{})
	cloud.handleFunc(pathGetNotifications, func(w http.ResponseWriter, _ *http.Request) {
		close(read)
		<-feed
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"message":"Disarm"}]`))
	})
	cloud.handle(pathAuthenticate, http.StatusOK, `{"sessionToken":"tkn"}`)
	cloud.handle(pathSetGeneralStatus, http.StatusOK, ``)
	cloud.handle(pathDisconnect, http.StatusOK, ``)
	state := &fakeCapability{value: StateDisarmed}
	p := newTestPanel(t, cloud, state)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Poll(context.Background())
	}()
	<-read

	require.NoError(t, p.SetState(context.Background(), StateArmed))
	require.Equal(t, StateArmed, state.Value())

	close(feed)
	<-done
	require.Equal(t, StateDisarmed, state.Value())
	require.Equal(t, []AlarmState{StateArmed, StateDisarmed}, state.Writes())
}

func TestPanelOverlappingPolls(t *testing.T) {
	release := make(chan struct{})
	cloud := newFakeCloud(t)
	cloud.handleFunc(pathGetNotifications, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, `[{"message":"Full Arm by user 1"}]`)
	})
	state := &fakeCapability{value: StateDisarmed}
	p := newTestPanel(t, cloud, state, WithPollInterval(time.Hour))

	ctx := context.Background()
	require.True(t, p.poller.Tick(ctx))
	require.Eventually(t, func() bool { return len(cloud.callsTo(pathGetNotifications)) == 1 }, time.Second, time.Millisecond)

	require.False(t, p.poller.Tick(ctx))
	require.False(t, p.poller.Tick(ctx))

	close(release)
	require.Eventually(t, func() bool { return !p.poller.Polling() }, time.Second, time.Millisecond)
	require.Len(t, cloud.callsTo(pathGetNotifications), 1)
	require.Equal(t, []AlarmState{StateArmed}, state.Writes())
}

func TestDeleteDevice(t *testing.T) {
	for name, tt := range map[string]struct {
		device string
		unpair bool
	}{
		"regular name": {"Home", false},
		"unpair":       {"unpair", true},
		"Unpair":       {"Unpair", true},
		"UNPAIR":       {"UNPAIR", true},
		"contains":     {"please unpair", false},
		"empty":        {"", false},
	} {
		t.Run(name, func(t *testing.T) {
			cloud := newFakeCloud(t)
			cloud.handle(pathUnPair, http.StatusNoContent, ``)

			unpaired, err := DeleteDevice(context.Background(), cloud.client(), "p1", tt.device)
			require.NoError(t, err)
			require.Equal(t, tt.unpair, unpaired)
			require.Equal(t, tt.unpair, ShouldUnpair(tt.device))
			if tt.unpair {
				require.Len(t, cloud.callsTo(pathUnPair), 1)
				require.JSONEq(t, `"p1"`, string(cloud.callsTo(pathUnPair)[0].Data))
			} else {
				require.Empty(t, cloud.paths())
			}
		})
	}

	t.Run("unpair failure", func(t *testing.T) {
		cloud := newFakeCloud(t)
		cloud.handle(pathUnPair, http.StatusBadRequest, `{"errorCode":3}`)
		unpaired, err := DeleteDevice(context.Background(), cloud.client(), "p1", UnpairName)
		require.Error(t, err)
		require.False(t, unpaired)
	})
}
