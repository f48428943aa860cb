package wsupervisor

import (
	"context"
	"testing"
	"time"
)

func TestNewClientOpenDispatchesToHandlers(t *testing.T) {
	statusCh := make(chan Status, 16)
	msgCh := make(chan Message, 16)

	transport := &mockTransport{
		ConnectFunc: func(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
			events.DidOpen("chat.v1")
			events.DidReceive(NewTextMessage([]byte("hello")))
			return &mockHandle{}, nil
		},
	}

	cli := NewClient(Config{
		Transport: transport,
		Handlers: EventHandlers{
			OnStatus:  func(c Client, old, new Status) { statusCh <- new },
			OnMessage: func(c Client, m Message) { msgCh <- m },
		},
	})

	if err := cli.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	select {
	case s := <-statusCh:
		if s.Kind != StatusOpening {
			t.Errorf("first status = %s, want opening", s.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the opening announce")
	}

	select {
	case s := <-statusCh:
		if s.Kind != StatusOpened {
			t.Errorf("second status = %s, want opened", s.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the opened announce")
	}

	select {
	case m := <-msgCh:
		if string(m.Data()) != "hello" {
			t.Errorf("message data = %q, want %q", m.Data(), "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the received message")
	}

	if cli.Status().Kind != StatusOpened {
		t.Errorf("Status() = %s, want opened", cli.Status().Kind)
	}
}

func TestNewClientSendFailsBeforeOpen(t *testing.T) {
	transport := &mockTransport{
		ConnectFunc: func(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
			return &mockHandle{}, nil
		},
	}
	cli := NewClient(Config{Transport: transport})

	if err := cli.Send(NewTextMessage([]byte("x"))); err != ErrNotOpened {
		t.Errorf("Send before Open: err = %v, want ErrNotOpened", err)
	}
}

func TestNewClientIDsAreUniquePerClient(t *testing.T) {
	transport := &mockTransport{}
	a := NewClient(Config{Transport: transport})
	b := NewClient(Config{Transport: transport})

	if a.ID() == b.ID() {
		t.Error("two distinct clients must not share an ID")
	}
}

func TestNewClientUsingMonitorIsIdempotent(t *testing.T) {
	transport := &mockTransport{}
	monitor := &mockMonitor{}

	cli := NewClient(Config{Transport: transport, Monitor: monitor})

	c := cli.(*client)
	if !c.monitorEnabled {
		t.Fatal("configuring a Monitor in Config must enable it by default")
	}

	// Repeated calls with the same enabled value must be no-ops: this must
	// not panic or double-register the onChange callback.
	cli.UsingMonitor(true)
	cli.UsingMonitor(false)
	cli.UsingMonitor(false)

	if c.monitorEnabled {
		t.Error("UsingMonitor(false) must disable the monitor")
	}
}
