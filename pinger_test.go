package wsupervisor

import (
	"sync"
	"testing"
	"time"
)

// fakePingerHost records sendPing/closeLocally calls for assertions.
type fakePingerHost struct {
	mu          sync.Mutex
	pingsSent   int
	closedCode  CloseCode
	closedWith  CloseReason
	closeCalled bool
}

func (h *fakePingerHost) sendPing(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingsSent++
	return nil
}

func (h *fakePingerHost) closeLocally(code CloseCode, reason CloseReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCalled = true
	h.closedCode = code
	h.closedWith = reason
}

func TestPingerTimeoutClosesLocally(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	host := &fakePingerHost{}
	cfg := PingingConfig{Mode: PingingStandard, Timeout: 5 * time.Second, Interval: 10 * time.Second}
	p := newPinger(cfg, host, clock, newNoopLogger(), nil)

	p.Resume()

	host.mu.Lock()
	sent := host.pingsSent
	host.mu.Unlock()
	if sent != 1 {
		t.Fatalf("Resume must send one ping immediately, got %d", sent)
	}

	// No pong arrives before the timeout elapses.
	clock.Advance(5 * time.Second)

	host.mu.Lock()
	defer host.mu.Unlock()
	if !host.closeCalled {
		t.Fatal("expected closeLocally to be called after ping timeout")
	}
	if _, ok := host.closedWith.(ReasonPinging); !ok {
		t.Errorf("expected ReasonPinging, got %T", host.closedWith)
	}
}

func TestPingerHealthyCycleReschedules(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	host := &fakePingerHost{}
	cfg := PingingConfig{Mode: PingingStandard, Timeout: 5 * time.Second, Interval: 10 * time.Second}
	p := newPinger(cfg, host, clock, newNoopLogger(), nil)

	p.Resume()
	p.OfferPong(NewPongMessage(nil))

	clock.Advance(5 * time.Second)

	host.mu.Lock()
	closed := host.closeCalled
	host.mu.Unlock()
	if closed {
		t.Fatal("a pong received before the deadline must not close locally")
	}

	// Second cycle fires after the healthy interval elapses.
	clock.Advance(10 * time.Second)

	host.mu.Lock()
	sent := host.pingsSent
	host.mu.Unlock()
	if sent != 2 {
		t.Errorf("expected a second ping after the healthy interval, got %d sends", sent)
	}
}

func TestPingerSuspendStopsCycle(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	host := &fakePingerHost{}
	cfg := PingingConfig{Mode: PingingStandard, Timeout: 5 * time.Second, Interval: 10 * time.Second}
	p := newPinger(cfg, host, clock, newNoopLogger(), nil)

	p.Resume()
	p.Suspend()

	clock.Advance(time.Hour)

	host.mu.Lock()
	defer host.mu.Unlock()
	if host.closeCalled {
		t.Error("a suspended pinger must never trigger a timeout close")
	}
}

func TestPingerResumeSuspendIdempotent(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	host := &fakePingerHost{}
	cfg := PingingConfig{Mode: PingingStandard, Timeout: 5 * time.Second, Interval: 10 * time.Second}
	p := newPinger(cfg, host, clock, newNoopLogger(), nil)

	p.Resume()
	p.Resume()

	host.mu.Lock()
	sent := host.pingsSent
	host.mu.Unlock()
	if sent != 1 {
		t.Errorf("a second Resume while already active must not send another ping, got %d sends", sent)
	}

	p.Suspend()
	p.Suspend() // must not panic or misbehave
}

func TestPingerProviderModeUsesCustomBuildAndCheck(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	host := &fakePingerHost{}
	provider := &fakePingProvider{pongMarker: "PONG"}
	cfg := PingingConfig{Mode: PingingProvider, Provider: provider, Timeout: 5 * time.Second, Interval: 10 * time.Second}
	p := newPinger(cfg, host, clock, newNoopLogger(), nil)

	p.Resume()
	p.OfferPong(NewTextMessage([]byte("PONG")))

	clock.Advance(5 * time.Second)

	host.mu.Lock()
	defer host.mu.Unlock()
	if host.closeCalled {
		t.Error("provider CheckPong match must prevent a timeout close")
	}
}

type fakePingProvider struct {
	pongMarker string
}

func (p *fakePingProvider) BuildPing() Message {
	return NewTextMessage([]byte("PING"))
}

func (p *fakePingProvider) CheckPong(m Message) bool {
	return string(m.Data()) == p.pongMarker
}
