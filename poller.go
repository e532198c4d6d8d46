package pimalink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Poller runs fn right away and then on every interval, never more than
// one at a time: a tick that fires while fn is still running is dropped.
type Poller struct {
	interval time.Duration
	fn       func(ctx context.Context)
	polling  atomic.Bool

	lock   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller returns a stopped poller. A non-positive interval means
// DefaultPollInterval.
func NewPoller(interval time.Duration, fn func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		interval: interval,
		fn:       fn,
	}
}

// Start starts polling in the background. Calling it on a started poller
// does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.Tick(ctx)
		}
	}
}

// Tick starts a poll unless one is in flight. It reports whether the poll
// was started.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.polling.CompareAndSwap(false, true) {
		log.Debug("previous poll still running, dropping tick")
		return false
	}
	go func() {
		defer p.polling.Store(false)
		p.fn(ctx)
	}()
	return true
}

// Polling reports whether a poll is in flight.
func (p *Poller) Polling() bool {
	return p.polling.Load()
}

// Stop stops the ticker and waits for the loop to exit. A poll in flight is
// not interrupted; the context it got is canceled so it can discard its
// result.
func (p *Poller) Stop() {
	p.lock.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.lock.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
