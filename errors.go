package wsupervisor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors covering the error taxonomy of spec.md §7.
var (
	// ErrNotOpened is returned by Send/SendPing when status isn't Opened.
	// It is returned directly to the caller and never retried.
	ErrNotOpened = errors.New("connection is not opened")

	// ErrConnectionClosed means the transport's underlying connection died.
	ErrConnectionClosed = errors.New("connection has been closed")

	// ErrCannotConnect means the handshake itself failed.
	ErrCannotConnect = errors.New("connection cannot be established")

	// ErrRateLimit means the peer rejected the handshake with 429.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrPingTimeout means no pong was observed within the configured
	// timeout; surfaced via on_error alongside the ReasonPinging close, and
	// retriable per spec.md §7.
	ErrPingTimeout = errors.New("ping timeout: no pong received")

	// ErrMonitorLoss means the reachability monitor reported the network
	// path unsatisfied; surfaced via on_error alongside the ReasonMonitor
	// close, and not retried until reachability returns.
	ErrMonitorLoss = errors.New("network path unsatisfied")
)

// TransportFailure wraps a transport-reported error as it flows from
// Transport.DidFail through on_error and into the retry decision.
type TransportFailure struct {
	Cause error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport failure: %s", e.Cause)
}

func (e *TransportFailure) Unwrap() error { return e.Cause }

func NewTransportFailure(cause error) *TransportFailure {
	return &TransportFailure{Cause: cause}
}
