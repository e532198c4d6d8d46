package pimalink

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPollInterval is how often panels are polled for notifications.
const DefaultPollInterval = 5 * time.Second

// Capability is where the host shows the alarm state of a panel.
type Capability interface {
	Value() AlarmState
	SetValue(AlarmState) error
}

type PanelOption func(*Panel)

func WithPollInterval(d time.Duration) PanelOption {
	return func(p *Panel) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollHook sets a function called after every poll step with the
// reduced state, or the error that made the step skip.
func WithPollHook(fn func(state AlarmState, err error)) PanelOption {
	return func(p *Panel) {
		p.onPoll = fn
	}
}

// Panel is a paired panel exposed as a device: user commands go through a
// panel session, and a poller keeps the capability in sync with the
// notification feed.
//
// Commands and polls are not serialized with each other. Whichever writes
// the capability last wins.
type Panel struct {
	cli      *Client
	entity   PairEntity
	userCode string
	phrases  Phrases
	state    Capability
	interval time.Duration
	onPoll   func(AlarmState, error)
	poller   *Poller
}

func NewPanel(
	cli *Client,
	entity PairEntity,
	userCode string,
	phrases Phrases,
	state Capability,
	options ...PanelOption,
) *Panel {
	p := &Panel{
		cli:      cli,
		entity:   entity,
		userCode: userCode,
		phrases:  phrases,
		state:    state,
		interval: DefaultPollInterval,
	}
	for _, option := range options {
		option(p)
	}
	p.poller = NewPoller(p.interval, p.Poll)
	return p
}

func (p *Panel) Entity() PairEntity { return p.entity }

// Start polls right away and then on every interval.
func (p *Panel) Start(ctx context.Context) {
	log.Info("start polling", "pair", p.entity.PairID, "interval", p.interval)
	p.poller.Start(ctx)
}

// Stop stops polling. A poll in flight completes but its result is
// discarded.
func (p *Panel) Stop() {
	p.poller.Stop()
	log.Info("stopped polling", "pair", p.entity.PairID)
}

// SetState arms, partially arms or disarms the panel, and updates the
// capability once the panel confirmed it. The returned error is meant to be
// shown to the user, see UserMessage.
func (p *Panel) SetState(ctx context.Context, target AlarmState) error {
	if _, err := target.generalStatus(); err != nil {
		return err
	}
	log.Info("set state", "pair", p.entity.PairID, "state", target)
	if err := p.cli.WithSession(ctx, p.entity.PairID, p.userCode, func(ctx context.Context, s *Session) error {
		return s.SetGeneralStatus(ctx, target)
	}); err != nil {
		return fmt.Errorf("could not set %q to %s: %w", p.entity.Name, target, err)
	}
	p.update(target)
	return nil
}

// Poll fetches the notification feed and updates the capability if it
// tells a different state. It never fails: errors are logged and the step
// is skipped.
func (p *Panel) Poll(ctx context.Context) {
	// the request is not aborted by Stop, only its result dropped.
	events, err := p.cli.Notifications(context.WithoutCancel(ctx), p.entity.PairID)
	if err != nil {
		log.Warn("could not poll", "pair", p.entity.PairID, "err", err)
		p.polled(StateUnknown, err)
		return
	}
	if ctx.Err() != nil {
		log.Debug("panel stopped, discarding poll", "pair", p.entity.PairID)
		return
	}

	state := p.phrases.Reduce(events)
	p.polled(state, nil)
	if state == StateUnknown {
		log.Debug("no state in notifications", "pair", p.entity.PairID, "events", len(events))
		return
	}
	p.update(state)
}

func (p *Panel) polled(state AlarmState, err error) {
	if p.onPoll != nil {
		p.onPoll(state, err)
	}
}

func (p *Panel) update(state AlarmState) {
	if p.state.Value() == state {
		return
	}
	err := p.state.SetValue(state)
	log.Info("set current state", "pair", p.entity.PairID, "state", state, "err", err)
}

// UnpairName is the device name that makes deleting a device also unpair
// its panel from the web user.
const UnpairName = "unpair"

// ShouldUnpair reports whether deleting a device with the given name must
// unpair its panel.
func ShouldUnpair(name string) bool {
	return strings.EqualFold(name, UnpairName)
}

// DeleteDevice unpairs pairID if, and only if, the deleted device was named
// "unpair".
func DeleteDevice(ctx context.Context, cli *Client, pairID, name string) (bool, error) {
	log.Info("device deleted", "pair", pairID, "name", name)
	if !ShouldUnpair(name) {
		return false, nil
	}
	if err := cli.UnPair(ctx, pairID); err != nil {
		return false, err
	}
	log.Info("unpaired", "pair", pairID)
	return true, nil
}
