package wsupervisor

import (
	"context"
	"sync"
	"time"
)

// PingingMode selects between the transport's native protocol ping and an
// application-level message the host supplies.
type PingingMode int

const (
	// PingingStandard drives the transport's native ping; resumed/suspended
	// automatically by the Supervisor on every status transition.
	PingingStandard PingingMode = iota
	// PingingProvider sends an application message produced by a
	// PingProvider; lifecycle is driven manually by the host.
	PingingProvider
)

// PingProvider builds the application-level ping message and recognizes its
// pong, for PingingProvider mode.
type PingProvider interface {
	BuildPing() Message
	CheckPong(m Message) bool
}

// PingingConfig configures the Pinger, per spec.md §3.
type PingingConfig struct {
	Mode     PingingMode
	Provider PingProvider
	Timeout  time.Duration
	Interval time.Duration
}

// pingerHost is the back-reference surface the Pinger needs from the
// Supervisor: sending the ping frame and requesting a local close when a
// cycle fails. Expressed as a narrow interface so the Pinger can tolerate
// the Supervisor disappearing, per spec.md §9's weak-back-reference
// guidance.
type pingerHost interface {
	sendPing(m Message) error
	closeLocally(code CloseCode, reason CloseReason)
}

// Pinger drives the heartbeat/ping cycle described in spec.md §4.3. All
// mutations of pongReceived, suspended, and the pending timer are
// serialised behind mu, matching spec.md §4.3's single-critical-section
// requirement.
type Pinger struct {
	mu sync.Mutex

	cfg   PingingConfig
	host  pingerHost
	clock Clock
	log   logger
	mtr   *metrics

	suspended    bool
	pongReceived bool
	pending      Timer
}

func newPinger(cfg PingingConfig, host pingerHost, clock Clock, log logger, mtr *metrics) *Pinger {
	return &Pinger{cfg: cfg, host: host, clock: clock, log: log.WithField("component", "pinger"), mtr: mtr, suspended: true}
}

// Resume starts a ping cycle if none is active. Idempotent.
func (p *Pinger) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.suspended {
		return
	}
	p.suspended = false
	p.armCycleLocked()
}

// Suspend cancels any pending scheduled step. No further pings are emitted
// until Resume. Idempotent.
func (p *Pinger) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.suspendLocked()
}

func (p *Pinger) suspendLocked() {
	p.suspended = true
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

// armCycleLocked implements the cycle algorithm of spec.md §4.3: emit a
// ping, then schedule the deadline check. Caller holds mu.
func (p *Pinger) armCycleLocked() {
	if p.suspended {
		return
	}

	p.pongReceived = false

	if err := p.host.sendPing(p.buildPing()); err != nil {
		p.log.Warnf("ping send failed: %s", err)
	}

	p.pending = p.clock.AfterFunc(p.cfg.Timeout, p.onDeadline)
}

func (p *Pinger) buildPing() Message {
	if p.cfg.Mode == PingingProvider && p.cfg.Provider != nil {
		return p.cfg.Provider.BuildPing()
	}
	return NewPingMessage(nil)
}

func (p *Pinger) onDeadline() {
	p.mu.Lock()

	if p.suspended {
		p.mu.Unlock()
		return
	}

	if !p.pongReceived {
		p.suspendLocked()
		p.mu.Unlock()

		if p.mtr != nil {
			p.mtr.recordPingTimeout(context.Background())
		}
		p.log.Warnln("ping timeout: closing locally")
		p.host.closeLocally(Invalid, ReasonPinging{})
		return
	}

	// Healthy: schedule the next cycle after interval.
	p.pending = p.clock.AfterFunc(p.cfg.Interval, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.armCycleLocked()
	})

	p.mu.Unlock()
}

// OfferPong offers an incoming message as a candidate pong. Standard mode:
// call this from the transport's pong callback. Provider mode: call this
// for every incoming message; a CheckPong match marks the cycle healthy.
func (p *Pinger) OfferPong(m Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.suspended {
		return
	}

	switch p.cfg.Mode {
	case PingingStandard:
		if m.Type().IsPong() {
			p.pongReceived = true
		}
	case PingingProvider:
		if p.cfg.Provider != nil && p.cfg.Provider.CheckPong(m) {
			p.pongReceived = true
		}
	}
}

// Automatic reports whether this Pinger's lifecycle should be driven
// automatically by the Supervisor (PingingStandard) rather than manually by
// the host (PingingProvider). See SPEC_FULL.md §9 open-question #3.
func (p *Pinger) Automatic() bool {
	return p.cfg.Mode == PingingStandard
}
