package wsupervisor

import "fmt"

// CloseReason classifies why a close happened locally. A nil CloseReason
// denotes a user-initiated manual close and is treated distinctly by the
// retry engine: see spec.md §3 and SPEC_FULL.md §9 open-question #1.
type CloseReason interface {
	isCloseReason()
	String() string
}

// ReasonPinging means the heartbeat subsystem declared the connection dead
// (no pong observed within the configured timeout).
type ReasonPinging struct{}

func (ReasonPinging) isCloseReason() {}
func (ReasonPinging) String() string { return "pinging" }

// ReasonMonitor means the reachability monitor reported the network path as
// unsatisfied.
type ReasonMonitor struct{}

func (ReasonMonitor) isCloseReason() {}
func (ReasonMonitor) String() string { return "monitor" }

// ReasonError wraps a transport-level failure. Domain tags the error with a
// short originating-subsystem string.
type ReasonError struct {
	Code   int
	Domain string
	Cause  error
}

func (ReasonError) isCloseReason() {}

func (r ReasonError) String() string {
	return fmt.Sprintf("error{code=%d,domain=%s}", r.Code, r.Domain)
}

func (r ReasonError) Unwrap() error { return r.Cause }

// ReasonServer carries the opaque payload bytes the peer sent along with its
// close frame. Per SPEC_FULL.md §9 open-question #2, this payload is only
// ever populated on receive; it is discarded when a close is transmitted.
type ReasonServer struct {
	Payload []byte
}

func (ReasonServer) isCloseReason() {}

func (r ReasonServer) String() string {
	return fmt.Sprintf("server{payload=%q}", r.Payload)
}

// IsManual reports whether reason denotes a user-initiated close: the nil
// marker recommended in spec.md §9.
func IsManual(reason CloseReason) bool {
	return reason == nil
}
