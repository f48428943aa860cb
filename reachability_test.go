package wsupervisor

import (
	"context"
	"testing"
	"time"
)

func TestReachabilityRestoredReopensAfterNonManualClose(t *testing.T) {
	statusCh := make(chan Status, 16)
	dsp := newTestDispatcher(statusCh)

	transport := &mockTransport{
		ConnectFunc: func(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
			events.DidOpen("")
			return &mockHandle{}, nil
		},
	}
	sup := newSupervisor(transport, ConnectParams{}, newFakeClock(time.Unix(0, 0)), nil, nil, dsp)

	monitor := &mockMonitor{}
	reach := newReachabilitySupervisor(monitor, sup)
	if err := reach.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := sup.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitStatus(t, statusCh, StatusOpened)

	monitor.Fire(Unsatisfied)
	waitStatus(t, statusCh, StatusClosed)

	monitor.Fire(Satisfied)
	waitStatus(t, statusCh, StatusOpening)
	waitStatus(t, statusCh, StatusOpened)
}

func TestReachabilityRestoredDoesNotReopenAfterManualClose(t *testing.T) {
	statusCh := make(chan Status, 16)
	dsp := newTestDispatcher(statusCh)

	var events TransportEvents
	transport := &mockTransport{
		ConnectFunc: func(ctx context.Context, params ConnectParams, ev TransportEvents) (TransportHandle, error) {
			events = ev
			events.DidOpen("")
			return &mockHandle{
				CancelFunc: func(code CloseCode, reason []byte) {
					events.DidClose(int(NormalClosure.Raw()), nil)
				},
			}, nil
		},
	}
	sup := newSupervisor(transport, ConnectParams{}, newFakeClock(time.Unix(0, 0)), nil, nil, dsp)

	monitor := &mockMonitor{}
	reach := newReachabilitySupervisor(monitor, sup)
	_ = reach.start()

	if err := sup.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitStatus(t, statusCh, StatusOpened)

	sup.Close(NormalClosure)
	waitStatus(t, statusCh, StatusClosing)
	waitStatus(t, statusCh, StatusClosed)

	monitor.Fire(Satisfied)

	select {
	case s := <-statusCh:
		t.Errorf("a Satisfied edge after a manual close must not reopen, got %s", s.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReachabilityDuplicateEdgesFiltered(t *testing.T) {
	statusCh := make(chan Status, 16)
	dsp := newTestDispatcher(statusCh)

	transport := &mockTransport{
		ConnectFunc: func(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
			events.DidOpen("")
			return &mockHandle{}, nil
		},
	}
	sup := newSupervisor(transport, ConnectParams{}, newFakeClock(time.Unix(0, 0)), nil, nil, dsp)

	if err := sup.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitStatus(t, statusCh, StatusOpened)

	monitor := &mockMonitor{}
	reach := newReachabilitySupervisor(monitor, sup)
	_ = reach.start()

	var calls int
	inner := monitor.onChange
	monitor.onChange = func(state Reachability) {
		calls++
		inner(state)
	}

	monitor.Fire(Unsatisfied)
	waitStatus(t, statusCh, StatusClosed)

	// Two further duplicate edges must be filtered before reaching the
	// supervisor at all; nothing further should be dispatched.
	monitor.Fire(Unsatisfied)
	monitor.Fire(Unsatisfied)

	if calls != 3 {
		t.Fatalf("expected the monitor to fire 3 times, got %d", calls)
	}
	select {
	case s := <-statusCh:
		t.Errorf("duplicate Unsatisfied edges must be filtered, got an extra status %s", s.Kind)
	case <-time.After(100 * time.Millisecond):
	}
	if !reach.hasEdge || reach.lastKnown != Unsatisfied {
		t.Errorf("reachabilitySupervisor did not record the edge correctly")
	}
}
