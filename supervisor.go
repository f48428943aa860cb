package wsupervisor

import (
	"context"
	"sync"
	"time"
)

// Supervisor is the connection state machine of spec.md §4.1: it owns the
// current Status, the active Transport handle, the retry counter and the
// pending reopen timer, and is the sole mutator of Status. Every mutation of
// status/retryTimes/retrying/pendingTask is serialised behind mu, the
// "single mutex per client" of spec.md §5; the pinger's pong flag is guarded
// by the Pinger's own mutex. The lock is never held across a user callback
// or blocking I/O.
type Supervisor struct {
	mu sync.Mutex

	transport Transport
	params    ConnectParams

	status Status

	activeHandle    TransportHandle
	activeAttemptID AttemptID

	retryPolicy *RetryPolicy
	retryTimes  int
	retrying    bool
	pendingTask Timer

	monitorUnsatisfied bool

	pinger *Pinger

	clock Clock
	log   logger
	mtr   *metrics
	dsp   *dispatcher

	client Client

	connectAt time.Time
}

func newSupervisor(transport Transport, params ConnectParams, clock Clock, log Logger, mtr *metrics, dsp *dispatcher) *Supervisor {
	if clock == nil {
		clock = NewSystemClock()
	}
	if log == nil {
		log = newNoopLogger()
	}
	return &Supervisor{
		transport: transport,
		params:    params,
		status:    ClosedStatus(),
		clock:     clock,
		log:       log.WithField("component", "supervisor"),
		mtr:       mtr,
		dsp:       dsp,
	}
}

func (s *Supervisor) bindClient(c Client) { s.client = c }

// UsingRetrier configures the retry engine. Must be called before Open or
// between closes, per spec.md §4.6.
func (s *Supervisor) UsingRetrier(policy Policy, limits uint32, filter Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryPolicy = NewRetryPolicy(policy, limits, filter)
}

// UsingPinging configures the heartbeat subsystem.
func (s *Supervisor) UsingPinging(cfg PingingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinger = newPinger(cfg, s, s.clock, s.log, s.mtr)
}

// UsingMonitor is applied by Client, which owns the reachabilitySupervisor
// wiring (see client.go), since it needs a stable *Supervisor back-reference
// before Open is ever called.

// Status returns the current status under the supervisor lock.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Open transitions Closed -> Opening and starts a handshake. Idempotent
// while already Opening/Opened, per spec.md §4.1/§8.
func (s *Supervisor) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Kind == StatusOpening || s.status.Kind == StatusOpened {
		s.mu.Unlock()
		return nil
	}
	s.retrying = false
	if s.pendingTask != nil {
		s.pendingTask.Stop()
		s.pendingTask = nil
	}
	old, changed := s.setStatusLocked(OpeningStatus())
	s.finishLocked(old, changed)

	s.connect(ctx)
	return nil
}

// connect performs a single Transport.Connect call and wires its events
// back through the identity-checked callbacks below.
func (s *Supervisor) connect(ctx context.Context) {
	attemptID := newAttemptID()

	s.mu.Lock()
	s.activeAttemptID = attemptID
	s.connectAt = s.clock.Now()
	s.mu.Unlock()

	events := TransportEvents{
		DidOpen: func(subprotocol string) {
			s.onDidOpen(attemptID, subprotocol)
		},
		DidReceive: func(m Message) {
			s.onDidReceive(attemptID, m)
		},
		DidClose: func(code int, data []byte) {
			s.onDidClose(attemptID, code, data)
		},
		DidFail: func(err error) {
			s.onDidFail(attemptID, err)
		},
		DidReceiveChallenge: func(c Challenge) ChallengeDisposition {
			return s.dsp.challenge(s.client, c)
		},
	}

	handle, err := s.transport.Connect(ctx, s.params, events)
	if err != nil {
		s.log.Errorf("connect attempt failed: %s", err)
		s.dsp.errorEvent(s.client, NewTransportFailure(err))
		s.tryClose(attemptID, Invalid, ReasonError{Domain: "transport", Cause: err})
		return
	}

	s.mu.Lock()
	if s.activeAttemptID == attemptID {
		s.activeHandle = handle
	}
	s.mu.Unlock()
}

func (s *Supervisor) onDidOpen(attemptID AttemptID, subprotocol string) {
	s.mu.Lock()
	if s.activeAttemptID != attemptID {
		s.mu.Unlock()
		return // stale Transport, discarded per spec.md §4.1
	}
	s.retryTimes = 0
	s.retrying = false
	old, changed := s.setStatusLocked(OpenedStatus(subprotocol))
	pinger := s.pinger
	s.finishLocked(old, changed)

	if s.mtr != nil {
		elapsed := s.clock.Now().Sub(s.connectAt)
		s.mtr.recordOpen(context.Background())
		s.mtr.recordConnectDuration(context.Background(), float64(elapsed.Milliseconds()), "success")
	}

	if pinger != nil && pinger.Automatic() {
		pinger.Resume()
	}
}

func (s *Supervisor) onDidReceive(attemptID AttemptID, m Message) {
	s.mu.Lock()
	if s.activeAttemptID != attemptID {
		s.mu.Unlock()
		return
	}
	pinger := s.pinger
	s.mu.Unlock()

	if pinger != nil {
		pinger.OfferPong(m)
	}

	s.dsp.message(s.client, m)
}

func (s *Supervisor) onDidClose(attemptID AttemptID, code int, data []byte) {
	closeCode := FromRaw(uint16(code))
	s.tryClose(attemptID, closeCode, ReasonServer{Payload: data})
}

func (s *Supervisor) onDidFail(attemptID AttemptID, err error) {
	s.dsp.errorEvent(s.client, NewTransportFailure(err))
	s.tryClose(attemptID, Invalid, ReasonError{Domain: "transport", Cause: err})
}

// Close initiates a graceful close, per spec.md §4.6. Idempotent while
// already Closing/Closed.
func (s *Supervisor) Close(code CloseCode) {
	s.mu.Lock()
	if s.status.Kind == StatusClosing || s.status.Kind == StatusClosed {
		s.mu.Unlock()
		return
	}

	handle := s.activeHandle
	pinger := s.pinger
	attemptID := s.activeAttemptID

	var old Status
	var changed bool
	if handle != nil {
		// Transport is running: announce Closing and let the handle's own
		// DidClose/DidFail drive the terminal transition once torn down.
		old, changed = s.setStatusLocked(ClosingStatus())
	} else {
		// A reopen may be pending: cancel it so tryClose below settles the
		// close instead of treating it as a duplicate of that retry.
		s.retrying = false
		if s.pendingTask != nil {
			s.pendingTask.Stop()
			s.pendingTask = nil
		}
	}
	s.finishLocked(old, changed)

	if pinger != nil {
		pinger.Suspend()
	}

	if handle != nil {
		handle.Cancel(code.ForTransmit(), nil)
		return
	}

	// No transport is running yet (still Opening with no handle, or
	// already idle): go straight to the terminal state.
	s.tryClose(attemptID, code, nil)
}

// closeLocally is the pingerHost/reachability entrypoint: requests a local
// close with cause reason. Like Close it cancels the active handle with
// code.ForTransmit(); unlike Close it does not announce Closing, reports
// ErrPingTimeout/ErrMonitorLoss for the matching reasons, and passes reason
// (not the manual nil marker) to tryClose.
func (s *Supervisor) closeLocally(code CloseCode, reason CloseReason) {
	s.mu.Lock()
	attemptID := s.activeAttemptID
	handle := s.activeHandle
	s.mu.Unlock()

	if handle != nil {
		handle.Cancel(code.ForTransmit(), nil)
	}

	switch reason.(type) {
	case ReasonPinging:
		s.dsp.errorEvent(s.client, ErrPingTimeout)
	case ReasonMonitor:
		s.dsp.errorEvent(s.client, ErrMonitorLoss)
	}

	s.tryClose(attemptID, code, reason)
}

// sendPing implements pingerHost.
func (s *Supervisor) sendPing(m Message) error {
	s.mu.Lock()
	handle := s.activeHandle
	s.mu.Unlock()

	if handle == nil {
		return ErrNotOpened
	}

	errC := make(chan error, 1)
	handle.SendPing(func(err error) { errC <- err })
	return <-errC
}

// Send forwards a message to the Transport. Fails with ErrNotOpened unless
// status is Opened, per spec.md §4.6/§7.
func (s *Supervisor) Send(m Message) error {
	s.mu.Lock()
	if s.status.Kind != StatusOpened {
		s.mu.Unlock()
		return ErrNotOpened
	}
	handle := s.activeHandle
	s.mu.Unlock()

	if handle == nil {
		return ErrNotOpened
	}

	errC := make(chan error, 1)
	handle.Send(m, func(err error) { errC <- err })
	return <-errC
}

// SendPing issues a protocol-level ping and reports the outcome via onPong.
func (s *Supervisor) SendPing(onPong func(error)) error {
	s.mu.Lock()
	if s.status.Kind != StatusOpened {
		s.mu.Unlock()
		return ErrNotOpened
	}
	handle := s.activeHandle
	s.mu.Unlock()

	if handle == nil {
		return ErrNotOpened
	}

	handle.SendPing(onPong)
	return nil
}

// tryClose is the retry decision function of spec.md §4.1. In strict order,
// each guard short-circuits to a terminal Closed(code, reason).
func (s *Supervisor) tryClose(attemptID AttemptID, code CloseCode, reason CloseReason) {
	s.mu.Lock()

	if s.activeAttemptID != attemptID {
		s.mu.Unlock()
		return // event from a superseded Transport, discarded
	}

	if s.status.Kind == StatusClosed {
		s.mu.Unlock()
		return // already settled
	}

	s.activeHandle = nil

	// A close already requested locally via Close() tears the transport down
	// from underneath this attempt; the resulting DidClose/DidFail is the
	// expected echo of that teardown, not an independent failure, so it is
	// folded into the manual-close marker regardless of what reason the
	// transport reported.
	if s.status.Kind == StatusClosing {
		reason = nil
	}

	// 1. A retry attempt is already pending: idempotent, do nothing further.
	if s.retrying {
		s.mu.Unlock()
		return
	}

	pinger := s.pinger
	s.mu.Unlock()

	if pinger != nil && pinger.Automatic() {
		pinger.Suspend()
	}

	s.mu.Lock()

	// Re-check under lock: a concurrent close/retry may have landed while we
	// briefly released the lock to suspend the pinger.
	if s.retrying || s.status.Kind == StatusClosed {
		s.mu.Unlock()
		return
	}

	// 2. Monitor currently Unsatisfied: do not retry.
	if s.monitorUnsatisfied {
		old, changed := s.settleClosedLocked(code, reason)
		s.finishLocked(old, changed)
		return
	}

	// 3. Manual user close (reason is nil): do not retry.
	if IsManual(reason) {
		old, changed := s.settleClosedLocked(code, reason)
		s.finishLocked(old, changed)
		return
	}

	// 4. No RetryPolicy configured: do not retry.
	if s.retryPolicy == nil {
		old, changed := s.settleClosedLocked(code, reason)
		s.finishLocked(old, changed)
		return
	}

	// 5. Ask the policy.
	s.retryTimes++
	delay, ok := s.retryPolicy.Retry(code, reason, s.retryTimes)
	if !ok {
		old, changed := s.settleClosedLocked(code, reason)
		s.finishLocked(old, changed)
		return
	}

	// 6. Schedule a reopen after delay.
	if s.mtr != nil {
		s.mtr.recordRetry(context.Background(), code)
	}
	s.log.Infof("scheduling reopen in %s after close %s (%v), attempt %d", delay, code, reason, s.retryTimes)

	s.retrying = true
	old, changed := s.setStatusLocked(OpeningStatus())
	s.pendingTask = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		s.retrying = false
		s.mu.Unlock()
		s.connect(context.Background())
	})
	s.finishLocked(old, changed)
}

// settleClosedLocked transitions to the terminal Closed(code, reason) state.
// Caller holds mu.
func (s *Supervisor) settleClosedLocked(code CloseCode, reason CloseReason) (Status, bool) {
	s.retrying = false
	if s.pendingTask != nil {
		s.pendingTask.Stop()
		s.pendingTask = nil
	}
	return s.setStatusLocked(ClosedWith(code, reason))
}

// setStatusLocked is the sole mutator of status. Its only side effect is
// suspending an automatic pinger on any non-Opened transition (receive-loop
// start is implicit in the Transport's own goroutines, pinger resume happens
// in onDidOpen, and notification is done by finishLocked). Setting status to
// an equal value is a no-op, reported via changed=false. Caller holds mu and
// must route the returned (old, changed) pair through finishLocked to
// dispatch it.
func (s *Supervisor) setStatusLocked(next Status) (old Status, changed bool) {
	if s.status.Equal(next) {
		return s.status, false
	}

	old = s.status
	s.status = next

	if next.Kind != StatusOpened && s.pinger != nil && s.pinger.Automatic() {
		// Safe to call while holding mu: Suspend only touches the pinger's
		// own mutex and never calls back into the Supervisor synchronously.
		s.pinger.Suspend()
	}

	return old, true
}

// finishLocked unlocks mu and, if setStatusLocked reported a real
// transition, dispatches it to the event lane. The dispatch always runs
// after mu is released — dsp.status may run a host-supplied DispatchFunc
// synchronously, which must never happen while mu is held — and always in
// the calling goroutine rather than a spawned one, so that two transitions
// serialized by mu are delivered to the dispatcher in that same order.
// Caller holds mu.
func (s *Supervisor) finishLocked(old Status, changed bool) {
	next := s.status
	dsp := s.dsp
	cli := s.client
	s.mu.Unlock()

	if changed {
		dsp.status(cli, old, next)
	}
}

// onMonitorUnsatisfied records the Monitor's Unsatisfied edge so future
// tryClose calls refuse to schedule reopens, per spec.md §4.4's invariant.
func (s *Supervisor) onMonitorUnsatisfied() {
	s.mu.Lock()
	s.monitorUnsatisfied = true
	s.mu.Unlock()
}

func (s *Supervisor) onMonitorSatisfied() {
	s.mu.Lock()
	s.monitorUnsatisfied = false
	s.mu.Unlock()
}

// onReachabilityRestored implements spec.md §4.4's Satisfied edge: if the
// current status is Closed with a non-nil reason (not a manual user close),
// reopen. Nil-reason closes are sticky.
func (s *Supervisor) onReachabilityRestored() {
	s.onMonitorSatisfied()

	s.mu.Lock()
	shouldOpen := s.status.Kind == StatusClosed && !IsManual(s.status.Reason)
	s.mu.Unlock()

	if shouldOpen {
		_ = s.Open(context.Background())
	}
}
